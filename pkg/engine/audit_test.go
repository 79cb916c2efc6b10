package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relkv/relkv/pkg/clock"
)

func TestAuditTrail(t *testing.T) {
	clk := clock.New()
	clk.Set(1000)
	db, err := New(Options{AuditEnabled: true, Clock: clk})
	require.NoError(t, err)

	require.NoError(t, db.Save("User", "1", Record{"name": "Alice"}))
	clk.Advance(10)
	require.NoError(t, db.Update("User", "1", "name", "Bob"))
	clk.Advance(10)
	require.NoError(t, db.Delete("User", "1"))

	entries, err := db.GetAudit(0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, OpSave, entries[0].Op)
	assert.Equal(t, OpUpdate, entries[1].Op)
	assert.Equal(t, OpDelete, entries[2].Op)

	t.Run("ids strictly increase", func(t *testing.T) {
		assert.Less(t, entries[0].ID, entries[1].ID)
		assert.Less(t, entries[1].ID, entries[2].ID)
	})

	t.Run("entries carry the fixed clock time", func(t *testing.T) {
		assert.Equal(t, int64(1000), entries[0].Timestamp)
		assert.Equal(t, int64(1010), entries[1].Timestamp)
		assert.Equal(t, int64(1020), entries[2].Timestamp)
	})

	t.Run("all reference the record key", func(t *testing.T) {
		for _, entry := range entries {
			assert.Equal(t, "User@1", entry.Key)
		}
	})

	t.Run("update snapshots the mutated record", func(t *testing.T) {
		assert.Equal(t, "Bob", entries[1].Payload["name"])
	})

	t.Run("delete snapshots the last stored record", func(t *testing.T) {
		assert.Equal(t, "Bob", entries[2].Payload["name"])
	})
}

func TestGetAuditRange(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Save("User", "1", Record{"rev": i}))
	}

	t.Run("explicit window is half-open", func(t *testing.T) {
		entries, err := db.GetAudit(1, 3)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, int64(1), entries[0].ID)
		assert.Equal(t, int64(2), entries[1].ID)
	})

	t.Run("zero bounds cover the whole trail", func(t *testing.T) {
		entries, err := db.GetAudit(0, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 5)
	})

	t.Run("empty window yields nothing", func(t *testing.T) {
		entries, err := db.GetAudit(3, 3)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

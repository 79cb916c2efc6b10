package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relkv/relkv/pkg/storage"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(Options{AuditEnabled: true})
	require.NoError(t, err)
	return db
}

func TestSaveLoad(t *testing.T) {
	db := newTestDB(t)

	rec := Record{"name": "Alice", "age": float64(30)}
	require.NoError(t, db.Save("User", "1", rec))

	loaded, found, err := db.Load("User", "1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Alice", loaded["name"])
	assert.Equal(t, float64(30), loaded["age"])

	t.Run("stored under the type@id key", func(t *testing.T) {
		_, found, err := db.Store().Get("User@1")
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("absent record is not an error", func(t *testing.T) {
		_, found, err := db.Load("User", "999")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Save("User", "1", Record{"name": "Alice"}))

	require.NoError(t, db.Delete("User", "1"))
	_, found, err := db.Load("User", "1")
	require.NoError(t, err)
	assert.False(t, found)

	t.Run("deleting a missing record fails", func(t *testing.T) {
		err := db.Delete("User", "1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Save("User", "1", Record{"name": "Alice", "age": float64(30)}))

	require.NoError(t, db.Update("User", "1", "age", 31))

	loaded, found, err := db.Load("User", "1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(31), loaded["age"])
	assert.Equal(t, "Alice", loaded["name"])

	t.Run("updating a missing record is a no-op", func(t *testing.T) {
		require.NoError(t, db.Update("User", "999", "age", 1))
		_, found, err := db.Load("User", "999")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestSystemValues(t *testing.T) {
	db := newTestDB(t)

	t.Run("missing counter reads as zero", func(t *testing.T) {
		n, err := db.GetSystemInt("User_id")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	require.NoError(t, db.SetSystemInt("User_id", 7))
	n, err := db.GetSystemInt("User_id")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	require.NoError(t, db.SetSystem("User_alias@alice", "1"))
	value, found, err := db.GetSystem("User_alias@alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", value)

	t.Run("system writes are not audited", func(t *testing.T) {
		entries, err := db.GetAudit(0, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("removing a missing system key is a no-op", func(t *testing.T) {
		require.NoError(t, db.RemoveSystem("User_alias@nobody"))
	})
}

func TestClear(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Save("User", "1", Record{"name": "Alice"}))
	require.NoError(t, db.SetSystemInt("User_id", 1))

	require.NoError(t, db.Clear())

	n, err := db.Store().Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	t.Run("audit counters reset", func(t *testing.T) {
		entries, err := db.GetAudit(0, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)

		require.NoError(t, db.Save("User", "2", Record{}))
		entries, err = db.GetAudit(0, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestAuditDisabled(t *testing.T) {
	db, err := New(Options{})
	require.NoError(t, err)
	assert.False(t, db.AuditEnabled())

	require.NoError(t, db.Save("User", "1", Record{"name": "Alice"}))
	entries, err := db.GetAudit(0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

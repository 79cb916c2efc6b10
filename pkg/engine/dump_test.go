package engine

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpJSON(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Save("User", "1", Record{"name": "Alice", "age": 30}))
	require.NoError(t, db.Save("User", "2", Record{"name": "Bob"}))
	require.NoError(t, db.Save("Post", "1", Record{"title": "Hello"}))
	require.NoError(t, db.SetSystemInt("User_id", 2))
	require.NoError(t, db.SetSystem("_settings", "ignored"))

	out, err := db.DumpJSON(false)
	require.NoError(t, err)

	var dump map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &dump))

	require.Contains(t, dump, "User")
	require.Contains(t, dump, "Post")
	assert.Equal(t, "Alice", dump["User"]["1"]["name"])
	assert.Equal(t, float64(30), dump["User"]["1"]["age"])
	assert.Equal(t, "Bob", dump["User"]["2"]["name"])
	assert.Equal(t, "Hello", dump["Post"]["1"]["title"])

	t.Run("keys without the separator are skipped", func(t *testing.T) {
		assert.NotContains(t, dump, "User_id")
	})

	t.Run("internal keys are skipped", func(t *testing.T) {
		assert.NotContains(t, dump, "_settings")
	})
}

func TestDumpJSONGolden(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Save("User", "1", Record{"name": "Alice", "age": 30}))
	require.NoError(t, db.Save("User", "2", Record{"name": "Bob"}))
	require.NoError(t, db.Save("Post", "1", Record{"title": "Hello"}))
	require.NoError(t, db.SetSystem("User_alias@bob", "2"))
	require.NoError(t, db.SetSystemInt("User_id", 2))

	out, err := db.DumpJSON(true)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "dump", []byte(out+"\n"))
}

func TestRawDumpJSON(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Save("User", "1", Record{"name": "Alice"}))
	require.NoError(t, db.SetSystemInt("User_id", 1))

	out, err := db.RawDumpJSON(false)
	require.NoError(t, err)

	var raw map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &raw))

	assert.Equal(t, "1", raw["User_id"])
	assert.JSONEq(t, `{"name":"Alice"}`, raw["User@1"])
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key      string
		typeName string
		id       string
		ok       bool
	}{
		{"User@1", "User", "1", true},
		{"app::User@42", "app::User", "42", true},
		{"User_alias@alice@example.com", "User_alias@alice", "example.com", true},
		{"User_id", "", "", false},
		{"@1", "", "", false},
		{"User@", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			typeName, id, ok := SplitKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.typeName, typeName)
			assert.Equal(t, tt.id, id)
		})
	}
}

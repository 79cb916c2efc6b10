package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relkv/relkv/pkg/engine"
)

func newTestSchema(t *testing.T) *Schema {
	t.Helper()
	db, err := engine.New(engine.Options{AuditEnabled: true})
	require.NoError(t, err)
	return NewSchema(db)
}

func defineUser(t *testing.T, s *Schema) *Type {
	t.Helper()
	return s.MustDefine("User",
		WithProperties(
			StringProperty("name"),
			IntegerProperty("age"),
		),
	)
}

func TestSequentialIDs(t *testing.T) {
	s := newTestSchema(t)
	user := defineUser(t, s)

	a, err := user.New(map[string]any{"name": "Alice"})
	require.NoError(t, err)
	b, err := user.New(map[string]any{"name": "Bob"})
	require.NoError(t, err)
	c, err := user.New(map[string]any{"name": "Carol"})
	require.NoError(t, err)

	assert.Equal(t, "1", a.ID())
	assert.Equal(t, "2", b.ID())
	assert.Equal(t, "3", c.ID())

	count, err := user.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	maxID, err := user.MaxID()
	require.NoError(t, err)
	assert.Equal(t, 3, maxID)
}

func TestNewWithID(t *testing.T) {
	s := newTestSchema(t)
	user := defineUser(t, s)

	t.Run("numeric id beyond the counter advances it", func(t *testing.T) {
		e, err := user.NewWithID("10", map[string]any{"name": "Alice"})
		require.NoError(t, err)
		assert.Equal(t, "10", e.ID())

		next, err := user.New(map[string]any{"name": "Bob"})
		require.NoError(t, err)
		assert.Equal(t, "11", next.ID())
	})

	t.Run("smaller numeric id never decrements the counter", func(t *testing.T) {
		_, err := user.NewWithID("5", map[string]any{"name": "Carol"})
		require.NoError(t, err)

		next, err := user.New(map[string]any{"name": "Dave"})
		require.NoError(t, err)
		assert.Equal(t, "12", next.ID())
	})

	t.Run("non-numeric id leaves the counter alone", func(t *testing.T) {
		_, err := user.NewWithID("primary", map[string]any{"name": "Eve"})
		require.NoError(t, err)

		maxID, err := user.MaxID()
		require.NoError(t, err)
		assert.Equal(t, 12, maxID)
	})

	t.Run("duplicate id is a consistency error", func(t *testing.T) {
		_, err := user.NewWithID("10", map[string]any{"name": "Mallory"})
		assert.ErrorIs(t, err, ErrConsistency)
	})

	t.Run("empty id is rejected", func(t *testing.T) {
		_, err := user.NewWithID("", nil)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestIdentityMap(t *testing.T) {
	s := newTestSchema(t)
	user := defineUser(t, s)

	created, err := user.New(map[string]any{"name": "Alice"})
	require.NoError(t, err)

	loaded, err := user.Load(created.ID())
	require.NoError(t, err)
	assert.Same(t, created, loaded, "loads of a live id return the same instance")

	again, err := user.Load(created.ID())
	require.NoError(t, err)
	assert.Same(t, loaded, again)

	t.Run("clearing the registry forces a fresh read", func(t *testing.T) {
		s.ClearRegistry()
		fresh, err := user.Load(created.ID())
		require.NoError(t, err)
		require.NotNil(t, fresh)
		assert.NotSame(t, created, fresh)
		assert.Equal(t, "Alice", fresh.GetString("name"))
		assert.True(t, fresh.Loaded())
	})
}

func TestLoadAbsent(t *testing.T) {
	s := newTestSchema(t)
	user := defineUser(t, s)

	e, err := user.Load("999")
	require.NoError(t, err)
	assert.Nil(t, e)

	t.Run("zero depth yields nothing", func(t *testing.T) {
		created, err := user.New(map[string]any{"name": "Alice"})
		require.NoError(t, err)
		s.ClearRegistry()

		e, err := user.LoadDepth(created.ID(), 0)
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("empty id yields nothing", func(t *testing.T) {
		e, err := user.Load("")
		require.NoError(t, err)
		assert.Nil(t, e)
	})
}

func TestDelete(t *testing.T) {
	s := newTestSchema(t)
	user := defineUser(t, s)

	e, err := user.New(map[string]any{"name": "Alice"})
	require.NoError(t, err)
	id := e.ID()

	require.NoError(t, e.Delete())

	count, err := user.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	loaded, err := user.Load(id)
	require.NoError(t, err)
	assert.Nil(t, loaded, "deleted entities do not load")

	t.Run("the id is retired, not reused", func(t *testing.T) {
		next, err := user.New(map[string]any{"name": "Bob"})
		require.NoError(t, err)
		assert.Equal(t, "2", next.ID())
	})

	t.Run("deleting twice would drive the count negative", func(t *testing.T) {
		only, err := user.Load("2")
		require.NoError(t, err)
		require.NoError(t, only.Delete())

		err = only.Delete()
		assert.ErrorIs(t, err, ErrConsistency)
	})
}

func TestLoadSome(t *testing.T) {
	s := newTestSchema(t)
	user := defineUser(t, s)

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		_, err := user.New(map[string]any{"name": name})
		require.NoError(t, err)
	}
	second, err := user.Load("2")
	require.NoError(t, err)
	require.NoError(t, second.Delete())

	got, err := user.LoadSome(1, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].ID())
	assert.Equal(t, "3", got[1].ID(), "deleted ids are skipped")
	assert.Equal(t, "4", got[2].ID())

	t.Run("fewer live entities than requested", func(t *testing.T) {
		got, err := user.LoadSome(4, 10)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		_, err := user.LoadSome(0, 3)
		assert.ErrorIs(t, err, ErrValidation)
		_, err = user.LoadSome(1, 0)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestInstancesWithSubtypes(t *testing.T) {
	s := newTestSchema(t)
	user := defineUser(t, s)
	manager := s.MustDefine("Manager",
		WithParent(user),
		WithProperties(StringProperty("team")),
	)

	_, err := user.New(map[string]any{"name": "Alice"})
	require.NoError(t, err)
	_, err = manager.New(map[string]any{"name": "Bob", "team": "core"})
	require.NoError(t, err)

	t.Run("parent listing includes subtypes", func(t *testing.T) {
		all, err := user.Instances()
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("subtype listing excludes the parent", func(t *testing.T) {
		managers, err := manager.Instances()
		require.NoError(t, err)
		require.Len(t, managers, 1)
		assert.Equal(t, "Bob", managers[0].GetString("name"))
	})

	t.Run("counters are per type", func(t *testing.T) {
		userCount, err := user.Count()
		require.NoError(t, err)
		managerCount, err := manager.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, userCount)
		assert.Equal(t, 1, managerCount)
	})

	t.Run("subtype inherits parent properties", func(t *testing.T) {
		bob, err := manager.Load("1")
		require.NoError(t, err)
		assert.Equal(t, "Bob", bob.GetString("name"))
	})
}

func TestFind(t *testing.T) {
	s := newTestSchema(t)
	user := defineUser(t, s)

	_, err := user.New(map[string]any{"name": "Alice", "age": 30})
	require.NoError(t, err)
	_, err = user.New(map[string]any{"name": "Bob", "age": 30})
	require.NoError(t, err)
	_, err = user.New(map[string]any{"name": "Carol", "age": 41})
	require.NoError(t, err)

	thirty, err := user.Find(map[string]any{"age": 30})
	require.NoError(t, err)
	assert.Len(t, thirty, 2)

	bob, err := user.Find(map[string]any{"age": 30, "name": "Bob"})
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.Equal(t, "Bob", bob[0].GetString("name"))

	none, err := user.Find(map[string]any{"name": "Mallory"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNamespaces(t *testing.T) {
	s := newTestSchema(t)
	bare := defineUser(t, s)
	scoped := s.MustDefine("User",
		WithNamespace("app"),
		WithProperties(StringProperty("name")),
	)

	_, err := bare.New(map[string]any{"name": "Alice"})
	require.NoError(t, err)
	e, err := scoped.New(map[string]any{"name": "Bob"})
	require.NoError(t, err)

	assert.Equal(t, "app::User", scoped.Qualified())
	assert.Equal(t, "app::User@1", e.Key())

	t.Run("stored under the qualified key", func(t *testing.T) {
		_, found, err := s.Database().Store().Get("app::User@1")
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("counters are independent per qualified type", func(t *testing.T) {
		bareCount, err := bare.Count()
		require.NoError(t, err)
		scopedCount, err := scoped.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, bareCount)
		assert.Equal(t, 1, scopedCount)
	})

	t.Run("qualified name resolves exactly", func(t *testing.T) {
		got, ok := s.TypeByName("app::User")
		require.True(t, ok)
		assert.Same(t, scoped, got)
	})

	t.Run("bare name prefers the unscoped type", func(t *testing.T) {
		got, ok := s.TypeByName("User")
		require.True(t, ok)
		assert.Same(t, bare, got)
	})
}

func TestAlias(t *testing.T) {
	s := newTestSchema(t)
	user := s.MustDefine("User",
		WithAlias("email"),
		WithProperties(
			StringProperty("email"),
			StringProperty("name"),
		),
	)

	alice, err := user.New(map[string]any{"email": "alice@example.com", "name": "Alice"})
	require.NoError(t, err)

	byAlias, err := user.Lookup("alice@example.com")
	require.NoError(t, err)
	assert.Same(t, alice, byAlias)

	byID, err := user.Lookup(alice.ID())
	require.NoError(t, err)
	assert.Same(t, alice, byID)

	t.Run("changing the alias retires the old entry", func(t *testing.T) {
		require.NoError(t, alice.Set("email", "alice@new.example.com"))

		stale, err := user.Lookup("alice@example.com")
		require.NoError(t, err)
		assert.Nil(t, stale)

		fresh, err := user.Lookup("alice@new.example.com")
		require.NoError(t, err)
		assert.Same(t, alice, fresh)
	})

	t.Run("delete removes the alias entry", func(t *testing.T) {
		require.NoError(t, alice.Delete())
		gone, err := user.Lookup("alice@new.example.com")
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("alias must name a declared property", func(t *testing.T) {
		_, err := s.Define("Broken", WithAlias("nope"))
		assert.ErrorIs(t, err, ErrValidation)
	})
}

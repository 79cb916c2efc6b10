// Package entity is the typed layer over the engine: schemas of entity
// types with validated properties, bidirectional relations, sequential
// ids, alias lookup, schema-version migration, and an identity map that
// keeps one live instance per (type, id).
//
// A Schema owns the type registry and the identity map for one
// Database. Types are declared up front:
//
//	db, _ := engine.New(engine.Options{})
//	schema := entity.NewSchema(db)
//	user := schema.MustDefine("User",
//		entity.WithAlias("email"),
//		entity.WithProperties(
//			entity.StringProperty("email"),
//			entity.StringProperty("name", entity.MinLength(3)),
//			entity.IntegerProperty("age", entity.MinValue(0)),
//		),
//	)
//
//	alice, _ := user.New(map[string]any{"email": "alice@example.com", "name": "Alice"})
//	same, _ := user.Lookup("alice@example.com")
//	// same == alice
//
// Every field write passes through the type's hook gate, kind coercion,
// and constraint checks before the entity re-persists; a failure at any
// step leaves both the entity and storage untouched.
package entity

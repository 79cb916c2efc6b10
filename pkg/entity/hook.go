package entity

// Action tells a hook why it is being invoked.
type Action int

const (
	// ActionCreate gates field writes before the entity's first persist.
	ActionCreate Action = iota + 1
	// ActionModify gates field writes after the first persist.
	ActionModify
	// ActionDelete gates entity deletion. The field name is empty.
	ActionDelete
)

// String returns the action name used in hook-related error messages.
func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionModify:
		return "modify"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// HookResult is a hook's verdict on a mutation: allow it as-is, allow it
// with a replacement value, or deny it.
type HookResult struct {
	allow     bool
	value     any
	rewritten bool
}

// Allow accepts the mutation with the value unchanged.
func Allow() HookResult {
	return HookResult{allow: true}
}

// AllowValue accepts the mutation but substitutes value for the one the
// caller supplied.
func AllowValue(value any) HookResult {
	return HookResult{allow: true, value: value, rewritten: true}
}

// Deny rejects the mutation. Field writes fail with a validation error,
// deletes with a permission error; no state changes either way.
func Deny() HookResult {
	return HookResult{}
}

// Hook is the per-type gate invoked on every field change and on delete.
//
// For field writes, field names the property being changed and oldValue/
// newValue carry the transition. For deletes, field is empty and both
// values are nil.
//
// Example — require names of at least three characters and auto-trim:
//
//	hook := entity.HookFunc(func(e *entity.Entity, field string, old, new any, action entity.Action) entity.HookResult {
//		if field == "name" {
//			name, _ := new.(string)
//			name = strings.TrimSpace(name)
//			if len(name) < 3 {
//				return entity.Deny()
//			}
//			return entity.AllowValue(name)
//		}
//		return entity.Allow()
//	})
type Hook interface {
	OnEvent(e *Entity, field string, oldValue, newValue any, action Action) HookResult
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(e *Entity, field string, oldValue, newValue any, action Action) HookResult

// OnEvent implements Hook.
func (f HookFunc) OnEvent(e *Entity, field string, oldValue, newValue any, action Action) HookResult {
	return f(e, field, oldValue, newValue, action)
}

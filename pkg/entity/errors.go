package entity

import (
	"errors"
	"fmt"
)

// Error taxonomy for the entity layer. Callers classify failures with
// errors.Is; the concrete messages carry the detail.
//
//   - ErrValidation: hook rejection, type mismatch, bound/length violation,
//     malformed coercion. Never retried; no partial state change.
//   - ErrNotFound: unresolved relation reference or alias miss. Callers may
//     retry after creating the missing target.
//   - ErrPermission: hook or ownership rejection of a modify/delete.
//   - ErrConsistency: a count would go negative, or a duplicate id on
//     create. Indicates a programming error; never auto-corrected.
//
// Capacity errors surface from pkg/storage unchanged (storage.ErrCapacity).
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrPermission  = errors.New("permission denied")
	ErrConsistency = errors.New("consistency violation")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func permissionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermission, fmt.Sprintf(format, args...))
}

func consistencyf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConsistency, fmt.Sprintf(format, args...))
}

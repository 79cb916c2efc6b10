// Package actor tracks the caller identity ownership checks read.
//
// The engine assumes one logical actor per call: an external request sets
// the current actor for the duration of its call chain and restores the
// previous one afterwards. A Handle makes that identity explicit state
// owned by the schema it belongs to, instead of a process-wide global, so
// two engine instances in one process never share callers.
//
// Example:
//
//	h := actor.NewHandle()
//	restore := h.Set("alice")
//	defer restore()
//
//	// Everything in this call chain now runs as "alice".
//	fmt.Println(h.Current()) // "alice"
package actor

import "sync"

// System is the default actor when none has been set.
const System = "system"

// Handle holds the current caller identity for one engine instance.
type Handle struct {
	mu      sync.Mutex
	current string
}

// NewHandle creates a Handle with the current actor set to System.
func NewHandle() *Handle {
	return &Handle{current: System}
}

// Current returns the current actor id.
func (h *Handle) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.current
}

// Set makes id the current actor and returns a restore function that
// reinstates the previous actor. Callers are expected to defer it:
//
//	defer h.Set("batch-importer")()
func (h *Handle) Set(id string) (restore func()) {
	h.mu.Lock()
	prev := h.current
	h.current = id
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		h.current = prev
		h.mu.Unlock()
	}
}

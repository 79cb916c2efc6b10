// Package clock provides the settable millisecond clock the engine
// timestamps records and audit entries with.
//
// By default a Clock reads the real wall clock. Tests and deterministic
// tooling can pin it to a fixed instant, advance it manually, and release
// it back to real time:
//
//	c := clock.New()
//	c.Set(1_000_000)          // freeze at a known instant
//	c.Advance(60_000)         // one minute later
//	fmt.Println(c.Now())      // 1060000
//	c.Clear()                 // back to real time
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock yields the current time in milliseconds since the Unix epoch.
// When a fixed time is set it is returned instead of the wall clock.
type Clock struct {
	mu    sync.Mutex
	fixed *int64
}

// New creates a Clock following real wall-clock time.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in milliseconds. If a fixed time is set,
// that is returned instead of the wall clock.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fixed != nil {
		return *c.fixed
	}
	return time.Now().UnixMilli()
}

// Set pins the clock to a fixed time in milliseconds since the epoch.
func (c *Clock) Set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fixed = &ms
}

// Advance moves the clock forward by the given number of milliseconds.
// If no fixed time is set, the clock becomes fixed at now + ms.
func (c *Clock) Advance(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var base int64
	if c.fixed != nil {
		base = *c.fixed
	} else {
		base = time.Now().UnixMilli()
	}
	next := base + ms
	c.fixed = &next
}

// Clear releases a fixed time and reverts to real wall-clock time.
func (c *Clock) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fixed = nil
}

// Format renders a millisecond timestamp as a human-readable string,
// e.g. "2025-02-09 15:26:27 (1739114787000)". Zero renders as "Never".
func Format(ms int64) string {
	if ms == 0 {
		return "Never"
	}
	t := time.UnixMilli(ms)
	return fmt.Sprintf("%s (%d)", t.Format("2006-01-02 15:04:05"), ms)
}

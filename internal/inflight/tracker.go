// Package inflight provides the concurrency-safe set of token addresses that
// currently have an active liquidation attempt. The tracker is injected into
// the coordinator rather than held as ambient state so it can be exercised in
// isolation.
package inflight

import "sync"

// Tracker is a mutex-guarded set keyed by token address. At most one entry
// exists per address at any time.
type Tracker struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]struct{})}
}

// TryAcquire atomically checks and inserts the token address. It returns true
// when the caller now owns the entry, false when the address is already in
// flight.
func (t *Tracker) TryAcquire(tokenAddress string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.active[tokenAddress]; ok {
		return false
	}
	t.active[tokenAddress] = struct{}{}
	return true
}

// Release removes the token address from the set. Releasing an address that
// is not present is a no-op.
func (t *Tracker) Release(tokenAddress string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, tokenAddress)
}

// Contains reports whether the token address is currently in flight.
func (t *Tracker) Contains(tokenAddress string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[tokenAddress]
	return ok
}

// Len returns the number of in-flight entries.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Snapshot returns a copy of the in-flight addresses.
func (t *Tracker) Snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.active))
	for addr := range t.active {
		out = append(out, addr)
	}
	return out
}

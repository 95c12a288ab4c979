// Package instructions tracks which tools the model has fetched usage
// instructions for. A grant lasts DefaultTTL; the execution engine
// rejects regular actions for tools without an active grant, forcing the
// two-phase retrieve-then-invoke pattern.
package instructions

import (
	"sort"
	"sync"
	"time"
)

// DefaultTTL is how long an instruction grant stays valid.
const DefaultTTL = 360 * time.Second

// Tracker is a mutex-guarded map of tool name to retrieval time. Expiry
// is lazy: entries are removed when a lookup finds them stale.
type Tracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// NewTracker creates a tracker with the given TTL (DefaultTTL when
// non-positive).
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// MarkRetrieved records (or refreshes) the grant for tool and reports
// whether an unexpired grant already existed.
func (t *Tracker) MarkRetrieved(tool string) (refreshed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if at, ok := t.entries[tool]; ok && now.Sub(at) < t.ttl {
		refreshed = true
	}
	t.entries[tool] = now
	return refreshed
}

// HasActive reports whether the tool holds an unexpired grant, deleting
// the entry when it has lapsed.
func (t *Tracker) HasActive(tool string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	at, ok := t.entries[tool]
	if !ok {
		return false
	}
	if t.now().Sub(at) >= t.ttl {
		delete(t.entries, tool)
		return false
	}
	return true
}

// ActiveToolNames sweeps expired entries and returns the remaining tool
// names, sorted.
func (t *Tracker) ActiveToolNames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	names := make([]string, 0, len(t.entries))
	for tool, at := range t.entries {
		if now.Sub(at) >= t.ttl {
			delete(t.entries, tool)
			continue
		}
		names = append(names, tool)
	}
	sort.Strings(names)
	return names
}

// ClearDisabled drops grants for tools no longer in the enabled set, so a
// disabled tool's grant does not outlive it.
func (t *Tracker) ClearDisabled(enabled map[string]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for tool := range t.entries {
		if !enabled[tool] {
			delete(t.entries, tool)
		}
	}
}

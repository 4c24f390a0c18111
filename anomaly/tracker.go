// Package anomaly implements a small rate-limited de-duplication tracker
// for repeated error conditions, so a connector seeing the same broker
// error on every message in a large batch logs it once per window instead
// of once per message.
package anomaly

import (
	"sync"
	"time"
)

// Tracker records the last time each named anomaly was reported and
// suppresses repeats inside a configurable window.
type Tracker struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

// New returns a Tracker that suppresses a given key's repeats for window.
func New(window time.Duration) *Tracker {
	return &Tracker{window: window, last: make(map[string]time.Time)}
}

// ShouldReport returns true at most once per window for a given key,
// reporting true immediately the first time a key is seen.
func (t *Tracker) ShouldReport(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, seen := t.last[key]
	if seen && now.Sub(last) < t.window {
		return false
	}
	t.last[key] = now
	return true
}

// Package ledger tracks which aircraft have recently been notified so the
// monitor never alerts twice for the same airframe within the cooldown
// window.
package ledger

import (
	"sync"
	"time"
)

const defaultCooldown = 5 * time.Minute

// Ledger maps ICAO24 addresses to the wall-clock time of their last
// notification. An address absent from the ledger has never been notified,
// or was notified long enough ago that its entry was swept.
type Ledger struct {
	mu       sync.Mutex
	notified map[string]time.Time
	cooldown time.Duration

	allowed int64
	skipped int64
	swept   int64
}

// New creates a ledger with the provided cooldown; zero or negative uses a
// default of five minutes.
func New(cooldown time.Duration) *Ledger {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Ledger{
		notified: make(map[string]time.Time),
		cooldown: cooldown,
	}
}

// Cooldown returns the configured cooldown window.
func (l *Ledger) Cooldown() time.Duration {
	if l == nil {
		return 0
	}
	return l.cooldown
}

// Eligible reports whether a notification for icao24 may be sent at time
// now: either the address was never notified, or its last notification is at
// least one cooldown old.
func (l *Ledger) Eligible(icao24 string, now time.Time) bool {
	if l == nil || icao24 == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.notified[icao24]
	if ok && now.Sub(last) < l.cooldown {
		l.skipped++
		return false
	}
	l.allowed++
	return true
}

// MarkNotified records a successful notification for icao24 at time now,
// then sweeps every entry older than twice the cooldown. The sweep is O(n)
// over current entries, which is fine for a local-airspace working set.
func (l *Ledger) MarkNotified(icao24 string, now time.Time) {
	if l == nil || icao24 == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.notified[icao24] = now

	maxAge := 2 * l.cooldown
	for key, t := range l.notified {
		if now.Sub(t) > maxAge {
			delete(l.notified, key)
			l.swept++
		}
	}
}

// Len returns the number of live entries.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.notified)
}

// Stats returns cumulative eligibility decisions and sweep removals.
func (l *Ledger) Stats() (allowed, skipped, swept int64) {
	if l == nil {
		return 0, 0, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowed, l.skipped, l.swept
}

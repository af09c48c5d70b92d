// Package lockout implements per-principal sliding-window brute-force
// detection. A principal is locked exactly when its in-window failed
// attempt count reaches the configured threshold; lockout is evaluated
// statelessly from the recorded timestamps, no lock flag is stored.
package lockout

import (
	"sync"
	"time"
)

// Tracker counts failed attempts per principal over a trailing window.
// Distinct principals never serialize against each other: the registry
// mutex is held only long enough to look up or create a record, and each
// record carries its own mutex.
type Tracker struct {
	maxAttempts    int
	window         time.Duration
	resetOnSuccess bool

	mu      sync.Mutex
	records map[string]*record

	// now is replaced in tests to drive the window.
	now func() time.Time
}

type record struct {
	mu       sync.Mutex
	failures []time.Time
}

// New creates a tracker. maxAttempts and window must be positive; the
// config package validates both before construction reaches here.
func New(maxAttempts int, window time.Duration, resetOnSuccess bool) *Tracker {
	return &Tracker{
		maxAttempts:    maxAttempts,
		window:         window,
		resetOnSuccess: resetOnSuccess,
		records:        make(map[string]*record),
		now:            time.Now,
	}
}

// Record registers an attempt for principal and reports whether the
// principal is now locked. A failed attempt appends a timestamp; entries
// older than the window are discarded before the threshold comparison.
// Successful attempts never lock, and clear the principal's failure
// history only when the tracker was built with resetOnSuccess.
func (t *Tracker) Record(principal string, succeeded bool) bool {
	now := t.now()
	r := t.record(principal)

	r.mu.Lock()
	defer r.mu.Unlock()

	if succeeded {
		if t.resetOnSuccess {
			r.failures = r.failures[:0]
		}
		return false
	}

	r.failures = append(r.failures, now)
	r.prune(now.Add(-t.window))
	return len(r.failures) >= t.maxAttempts
}

// Locked re-evaluates the lockout condition for principal at the current
// time without recording an attempt.
func (t *Tracker) Locked(principal string) bool {
	return t.Failures(principal) >= t.maxAttempts
}

// Failures returns the principal's current in-window failure count.
func (t *Tracker) Failures(principal string) int {
	t.mu.Lock()
	r, ok := t.records[principal]
	t.mu.Unlock()
	if !ok {
		return 0
	}

	cutoff := t.now().Add(-t.window)
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, ts := range r.failures {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// record returns the principal's record, creating it lazily on the first
// attempt.
func (t *Tracker) record(principal string) *record {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[principal]
	if !ok {
		r = &record{}
		t.records[principal] = r
	}
	return r
}

// prune drops entries older than cutoff. Pruning is an optimization; the
// threshold comparison only ever sees in-window entries either way.
// Caller holds r.mu.
func (r *record) prune(cutoff time.Time) {
	kept := r.failures[:0]
	for _, ts := range r.failures {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.failures = kept
}

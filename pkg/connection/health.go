package connection

import (
	"sync"
	"time"
)

// HealthRecord tracks the last successful backend call and the number of
// consecutive failures since. Safe for concurrent use.
type HealthRecord struct {
	mu          sync.RWMutex
	now         func() time.Time
	lastSuccess time.Time
	failures    int
}

// NewHealthRecord creates a record whose last success is the creation time.
// A nil clock means time.Now.
func NewHealthRecord(now func() time.Time) *HealthRecord {
	if now == nil {
		now = time.Now
	}
	return &HealthRecord{now: now, lastSuccess: now()}
}

// RecordSuccess resets the failure streak.
func (r *HealthRecord) RecordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSuccess = r.now()
	r.failures = 0
}

// RecordFailure extends the failure streak and returns its new length.
func (r *HealthRecord) RecordFailure() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
	return r.failures
}

// ConsecutiveFailures returns the current failure streak.
func (r *HealthRecord) ConsecutiveFailures() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failures
}

// LastSuccess returns the time of the last recorded success.
func (r *HealthRecord) LastSuccess() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSuccess
}

// Stale reports whether more than window elapsed since the last success.
func (r *HealthRecord) Stale(window time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.now().Sub(r.lastSuccess) > window
}

// Package occupancy owns the room's occupancy record and the timeout-decay
// rule that turns discrete motion reports into an occupied/unoccupied verdict.
package occupancy

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// State is the conceptual state of the occupancy record.
type State string

const (
	// StateUnknown holds from process start until the first report.
	StateUnknown    State = "unknown"
	StateOccupied   State = "occupied"
	StateUnoccupied State = "unoccupied"
)

// Record is the last accepted report. LastReportTime is nil until a report
// has been accepted.
type Record struct {
	LastSignal     bool
	LastReportTime *time.Time
}

// Status is the verdict computed for a single query.
type Status struct {
	Occupied bool
	State    State
	Record   Record
	Timeout  time.Duration
}

// Tracker is the single shared occupancy record. Both fields are guarded by
// one lock so readers never see a signal paired with another report's time.
type Tracker struct {
	mu      sync.RWMutex
	record  Record
	timeout time.Duration
	clock   clockwork.Clock
}

// NewTracker creates a tracker in the unknown state.
func NewTracker(timeout time.Duration, clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{timeout: timeout, clock: clock}
}

// Report overwrites the record with the given signal, stamped with the
// current time, and returns the accepted record. The time is read under the
// lock so concurrent reports commit in timestamp order.
func (t *Tracker) Report(detected bool) Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.record = Record{LastSignal: detected, LastReportTime: &now}
	return t.record
}

// Status evaluates the decay rule against the current time. It never
// mutates the record.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	rec := t.record
	t.mu.RUnlock()

	return Evaluate(rec, t.clock.Now(), t.timeout)
}

// Evaluate applies the decay rule: the room is occupied iff a report exists,
// it is at most timeout old, and it carried motion.
func Evaluate(rec Record, now time.Time, timeout time.Duration) Status {
	st := Status{Record: rec, Timeout: timeout}
	if rec.LastReportTime == nil {
		st.State = StateUnknown
		return st
	}

	age := now.Sub(*rec.LastReportTime)
	if rec.LastSignal && age <= timeout {
		st.Occupied = true
		st.State = StateOccupied
		return st
	}
	st.State = StateUnoccupied
	return st
}

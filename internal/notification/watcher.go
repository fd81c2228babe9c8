package notification

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"occupancy-status-backend/internal/occupancy"
)

// StatusSource yields the current occupancy verdict.
type StatusSource interface {
	Status() occupancy.Status
}

// Dispatcher accepts notification jobs.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

// Watcher polls the occupancy verdict and dispatches an event whenever the
// room goes from occupied to free. Decay happens at query time, so polling is
// the only way to observe a timeout-driven transition.
type Watcher struct {
	source     StatusSource
	dispatcher Dispatcher
	interval   time.Duration
	clock      clockwork.Clock
	logger     *zap.Logger

	last occupancy.State
}

// NewWatcher creates a watcher. Call Run to start polling.
func NewWatcher(source StatusSource, dispatcher Dispatcher, interval time.Duration, clock clockwork.Clock, logger *zap.Logger) *Watcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		source:     source,
		dispatcher: dispatcher,
		interval:   interval,
		clock:      clock,
		logger:     logger,
		last:       occupancy.StateUnknown,
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			w.Check(ctx)
		}
	}
}

// Check evaluates the verdict once and dispatches on an occupied -> free edge.
// It reports whether an event was dispatched.
func (w *Watcher) Check(ctx context.Context) bool {
	st := w.source.Status()
	prev := w.last
	w.last = st.State

	if prev != occupancy.StateOccupied || st.State != occupancy.StateUnoccupied {
		return false
	}

	w.logger.Info("room became free")
	if err := w.dispatcher.Dispatch(ctx, Event{Occupied: false, At: w.clock.Now()}); err != nil {
		w.logger.Warn("dropping availability notification", zap.Error(err))
		return false
	}
	return true
}

// Package agent samples the motion sensor, mirrors the reading on the
// indicator and reports it to the occupancy server.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"occupancy-status-backend/config"
	"occupancy-status-backend/internal/device"
)

// Agent runs the sample/indicate/report loop.
type Agent struct {
	sensor    device.Sensor
	indicator device.Indicator
	reporter  Reporter
	policy    string
	interval  time.Duration
	clock     clockwork.Clock
	logger    *zap.Logger
}

// Option customises an Agent.
type Option func(*Agent)

// WithClock replaces the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(a *Agent) { a.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// New creates an agent. policy is config.PolicyLevel or config.PolicyEdge.
func New(sensor device.Sensor, indicator device.Indicator, reporter Reporter, policy string, interval time.Duration, opts ...Option) *Agent {
	a := &Agent{
		sensor:    sensor,
		indicator: indicator,
		reporter:  reporter,
		policy:    policy,
		interval:  interval,
		clock:     clockwork.NewRealClock(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run ticks until ctx is cancelled, then switches the indicator off and
// closes both devices.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent started",
		zap.String("policy", a.policy),
		zap.Duration("interval", a.interval))
	defer a.release()

	a.Tick(ctx)

	ticker := a.clock.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent shutting down")
			return nil
		case <-ticker.Chan():
			a.Tick(ctx)
		}
	}
}

// Tick performs one sample. It reports whether a reading was sent and
// accepted by the server. Failures are logged and never retried; the next
// tick carries a fresher reading anyway.
func (a *Agent) Tick(ctx context.Context) bool {
	motion, err := a.sensor.Read(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			a.logger.Warn("sensor read failed, skipping tick", zap.Error(err))
		}
		return false
	}

	if err := a.indicator.Set(motion); err != nil {
		a.logger.Warn("indicator write failed", zap.Error(err))
	}

	if a.policy == config.PolicyEdge && !motion {
		return false
	}

	if err := a.reporter.Report(ctx, motion); err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("report dropped", zap.Bool("motion", motion), zap.Error(err))
		}
		return false
	}
	a.logger.Debug("reported", zap.Bool("motion", motion))
	return true
}

func (a *Agent) release() {
	if err := a.indicator.Set(false); err != nil {
		a.logger.Warn("failed to switch indicator off", zap.Error(err))
	}
	if err := a.indicator.Close(); err != nil {
		a.logger.Warn("failed to close indicator", zap.Error(err))
	}
	if err := a.sensor.Close(); err != nil {
		a.logger.Warn("failed to close sensor", zap.Error(err))
	}
}

// Package device abstracts the agent's motion input and indicator output.
package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"occupancy-status-backend/config"
)

// ErrInvalidValue is returned when a file-backed sensor holds something other than 0 or 1.
var ErrInvalidValue = errors.New("sensor value must be 0 or 1")

// ErrUnknownKind is returned for device kinds that have no implementation.
var ErrUnknownKind = errors.New("unknown device kind")

// Sensor yields a binary motion reading.
type Sensor interface {
	Read(ctx context.Context) (bool, error)
	Close() error
}

// Indicator mirrors the latest reading on a binary output.
type Indicator interface {
	Set(on bool) error
	Close() error
}

// NewSensor builds the sensor selected by cfg.
func NewSensor(cfg config.DeviceConfig) (Sensor, error) {
	switch cfg.Kind {
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file sensor: path is required")
		}
		return &FileSensor{path: cfg.Path}, nil
	case "sim":
		return NewSimSensor(cfg.Period), nil
	default:
		return nil, fmt.Errorf("%w: sensor %q", ErrUnknownKind, cfg.Kind)
	}
}

// NewIndicator builds the indicator selected by cfg.
func NewIndicator(cfg config.DeviceConfig, logger *zap.Logger) (Indicator, error) {
	switch cfg.Kind {
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file indicator: path is required")
		}
		return &FileIndicator{path: cfg.Path}, nil
	case "log":
		return &LogIndicator{logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: indicator %q", ErrUnknownKind, cfg.Kind)
	}
}

// FileSensor reads "0" or "1" from a file such as a sysfs GPIO value file.
type FileSensor struct {
	path string
}

// Read returns the value currently stored in the file.
func (s *FileSensor) Read(_ context.Context) (bool, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("read sensor %s: %w", s.path, err)
	}
	switch strings.TrimSpace(string(raw)) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s holds %q", ErrInvalidValue, s.path, strings.TrimSpace(string(raw)))
	}
}

// Close is a no-op; the file is opened per read.
func (s *FileSensor) Close() error { return nil }

// FileIndicator writes "1" or "0" to a file such as a sysfs GPIO value file.
type FileIndicator struct {
	path string
}

// Set writes the indicator state.
func (i *FileIndicator) Set(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	if err := os.WriteFile(i.path, []byte(v), 0o644); err != nil {
		return fmt.Errorf("write indicator %s: %w", i.path, err)
	}
	return nil
}

// Close switches the indicator off.
func (i *FileIndicator) Close() error {
	return i.Set(false)
}

// SimSensor alternates between no motion and motion every period reads.
type SimSensor struct {
	mu     sync.Mutex
	period int
	reads  int
}

// NewSimSensor creates a simulated sensor that starts with no motion.
func NewSimSensor(period int) *SimSensor {
	if period <= 0 {
		period = 1
	}
	return &SimSensor{period: period}
}

// Read returns the simulated value for this read.
func (s *SimSensor) Read(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := (s.reads/s.period)%2 == 1
	s.reads++
	return v, nil
}

// Close is a no-op.
func (s *SimSensor) Close() error { return nil }

// LogIndicator logs state changes instead of driving hardware.
type LogIndicator struct {
	logger *zap.Logger
	mu     sync.Mutex
	on     bool
	set    bool
}

// Set logs the new state when it differs from the previous one.
func (i *LogIndicator) Set(on bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.set && i.on == on {
		return nil
	}
	i.on, i.set = on, true
	if i.logger != nil {
		i.logger.Info("indicator", zap.Bool("on", on))
	}
	return nil
}

// On reports the last state set.
func (i *LogIndicator) On() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.on
}

// Close switches the indicator off.
func (i *LogIndicator) Close() error {
	return i.Set(false)
}

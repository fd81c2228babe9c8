package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"occupancy-status-backend/config"
)

// recorder collects device and reporter calls in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(c string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type mockSensor struct {
	rec    *recorder
	values []bool
	err    error
	reads  int
	closed bool
}

func (s *mockSensor) Read(_ context.Context) (bool, error) {
	s.rec.add("read")
	if s.err != nil {
		return false, s.err
	}
	v := s.values[s.reads%len(s.values)]
	s.reads++
	return v, nil
}

func (s *mockSensor) Close() error {
	s.closed = true
	return nil
}

type mockIndicator struct {
	rec    *recorder
	err    error
	on     bool
	closed bool
}

func (i *mockIndicator) Set(on bool) error {
	if on {
		i.rec.add("indicator:on")
	} else {
		i.rec.add("indicator:off")
	}
	if i.err != nil {
		return i.err
	}
	i.on = on
	return nil
}

func (i *mockIndicator) Close() error {
	i.closed = true
	return nil
}

type mockReporter struct {
	rec *recorder
	err error
}

func (r *mockReporter) Report(_ context.Context, motion bool) error {
	if motion {
		r.rec.add("report:true")
	} else {
		r.rec.add("report:false")
	}
	return r.err
}

func newMocks(values ...bool) (*recorder, *mockSensor, *mockIndicator, *mockReporter) {
	rec := &recorder{}
	return rec, &mockSensor{rec: rec, values: values}, &mockIndicator{rec: rec}, &mockReporter{rec: rec}
}

func TestTick_IndicatorBeforeReport(t *testing.T) {
	rec, sensor, ind, rep := newMocks(true)
	a := New(sensor, ind, rep, config.PolicyLevel, time.Second)

	assert.True(t, a.Tick(context.Background()))
	assert.Equal(t, []string{"read", "indicator:on", "report:true"}, rec.snapshot())
}

func TestTick_LevelPolicyReportsFalse(t *testing.T) {
	rec, sensor, ind, rep := newMocks(false)
	a := New(sensor, ind, rep, config.PolicyLevel, time.Second)

	assert.True(t, a.Tick(context.Background()))
	assert.Equal(t, []string{"read", "indicator:off", "report:false"}, rec.snapshot())
}

func TestTick_EdgePolicySkipsFalse(t *testing.T) {
	rec, sensor, ind, rep := newMocks(false, true)
	a := New(sensor, ind, rep, config.PolicyEdge, time.Second)

	assert.False(t, a.Tick(context.Background()))
	assert.True(t, a.Tick(context.Background()))
	assert.Equal(t, []string{
		"read", "indicator:off",
		"read", "indicator:on", "report:true",
	}, rec.snapshot())
}

func TestTick_SensorErrorSkipsReport(t *testing.T) {
	rec, sensor, ind, rep := newMocks(true)
	ind.on = true
	sensor.err = errors.New("bus error")

	core, logs := observer.New(zap.WarnLevel)
	a := New(sensor, ind, rep, config.PolicyLevel, time.Second, WithLogger(zap.New(core)))

	assert.False(t, a.Tick(context.Background()))
	assert.Equal(t, []string{"read"}, rec.snapshot())
	assert.True(t, ind.on, "indicator keeps its previous state")
	assert.Equal(t, 1, logs.FilterMessage("sensor read failed, skipping tick").Len())
}

func TestTick_IndicatorErrorStillReports(t *testing.T) {
	rec, sensor, ind, rep := newMocks(true)
	ind.err = errors.New("permission denied")
	a := New(sensor, ind, rep, config.PolicyLevel, time.Second)

	assert.True(t, a.Tick(context.Background()))
	assert.Equal(t, []string{"read", "indicator:on", "report:true"}, rec.snapshot())
}

func TestTick_ReportFailureIsLogged(t *testing.T) {
	_, sensor, ind, rep := newMocks(true)
	rep.err = errors.New("connection refused")

	core, logs := observer.New(zap.WarnLevel)
	a := New(sensor, ind, rep, config.PolicyLevel, time.Second, WithLogger(zap.New(core)))

	assert.False(t, a.Tick(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("report dropped").Len())
}

func TestRun_NetworkFailureDoesNotStopLoop(t *testing.T) {
	_, sensor, ind, rep := newMocks(true, false)
	rep.err = errors.New("connection refused")

	clock := clockwork.NewFakeClock()
	a := New(sensor, ind, rep, config.PolicyLevel, time.Second, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// The first tick runs before the ticker is created.
	clock.BlockUntil(1)
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
	}

	assert.Eventually(t, func() bool {
		return countReports(rep.rec.snapshot()) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("agent did not stop after cancel")
	}

	assert.False(t, ind.on, "indicator is switched off on exit")
	assert.True(t, ind.closed)
	assert.True(t, sensor.closed)
}

func countReports(calls []string) int {
	n := 0
	for _, c := range calls {
		if c == "report:true" || c == "report:false" {
			n++
		}
	}
	return n
}

func TestHTTPReporter(t *testing.T) {
	received := make(chan *bool, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body struct {
			Motion *bool `json:"motion"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received <- body.Motion
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rep := NewHTTPReporter(server.URL+"/motion", time.Second)
	require.NoError(t, rep.Report(context.Background(), false))

	got := <-received
	require.NotNil(t, got)
	assert.False(t, *got)
}

func TestHTTPReporter_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewHTTPReporter(server.URL, time.Second).Report(context.Background(), true)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestHTTPReporter_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	rep := NewHTTPReporter(server.URL, 20*time.Millisecond)
	err := rep.Report(context.Background(), true)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnexpectedStatus)
}

func TestHTTPReporter_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := NewHTTPReporter(url, time.Second).Report(context.Background(), true)
	assert.Error(t, err)
}

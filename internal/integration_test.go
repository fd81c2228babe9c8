package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"occupancy-status-backend/config"
	"occupancy-status-backend/internal/agent"
	"occupancy-status-backend/internal/api"
	"occupancy-status-backend/internal/device"
	"occupancy-status-backend/internal/model"
	"occupancy-status-backend/internal/occupancy"
)

type scriptedSensor struct {
	values []bool
	next   int
}

func (s *scriptedSensor) Read(context.Context) (bool, error) {
	v := s.values[s.next]
	if s.next < len(s.values)-1 {
		s.next++
	}
	return v, nil
}

func (s *scriptedSensor) Close() error { return nil }

// TestOccupancyLifecycle drives the real agent against the real HTTP server
// and checks the verdict a consumer sees as time passes.
func TestOccupancyLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serverClock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC))
	tracker := occupancy.NewTracker(5*time.Minute, serverClock)
	cfg := config.Default()
	router := api.NewRouter(api.NewHandler(tracker, nil, nil), cfg.Server, zap.NewNop())

	server := httptest.NewServer(router)
	defer server.Close()

	query := func() model.OccupancyStatus {
		resp, err := http.Get(server.URL + "/api/occupancy")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var st model.OccupancyStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
		return st
	}

	st := query()
	assert.Equal(t, "unknown", st.State)
	assert.False(t, st.Occupied)

	sensor := &scriptedSensor{values: []bool{true, false}}
	indicator, err := device.NewIndicator(config.DeviceConfig{Kind: "log"}, zap.NewNop())
	require.NoError(t, err)
	reporter := agent.NewHTTPReporter(server.URL+"/motion", time.Second)

	// Edge policy: the single positive reading is reported, the negative one is not.
	a := agent.New(sensor, indicator, reporter, config.PolicyEdge, time.Second)
	ctx := context.Background()
	require.True(t, a.Tick(ctx))
	require.False(t, a.Tick(ctx))

	serverClock.Advance(4 * time.Minute)
	st = query()
	assert.True(t, st.Occupied)
	assert.Equal(t, "occupied", st.State)

	serverClock.Advance(2 * time.Minute)
	st = query()
	assert.False(t, st.Occupied)
	assert.Equal(t, "unoccupied", st.State)
	require.NotNil(t, st.LastReportTime)

	// Level policy: a negative reading clears occupancy immediately.
	sensor = &scriptedSensor{values: []bool{true, false}}
	a = agent.New(sensor, indicator, reporter, config.PolicyLevel, time.Second)
	require.True(t, a.Tick(ctx))
	assert.True(t, query().Occupied)
	require.True(t, a.Tick(ctx))
	assert.False(t, query().Occupied)
}

// TestAgentSurvivesServerOutage checks that a report against a stopped
// server fails without affecting later ticks.
func TestAgentSurvivesServerOutage(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tracker := occupancy.NewTracker(time.Minute, nil)
	router := api.NewRouter(api.NewHandler(tracker, nil, nil), config.Default().Server, zap.NewNop())
	server := httptest.NewUnstartedServer(router)

	sensor := &scriptedSensor{values: []bool{true}}
	indicator, err := device.NewIndicator(config.DeviceConfig{Kind: "log"}, zap.NewNop())
	require.NoError(t, err)

	ln := server.Listener
	addr := "http://" + ln.Addr().String() + "/motion"
	a := agent.New(sensor, indicator, agent.NewHTTPReporter(addr, 200*time.Millisecond), config.PolicyLevel, time.Second)

	// Listener exists but nothing accepts yet; the bounded client gives up.
	assert.False(t, a.Tick(context.Background()))

	server.Start()
	defer server.Close()
	assert.True(t, a.Tick(context.Background()))
	assert.True(t, tracker.Status().Occupied)
}

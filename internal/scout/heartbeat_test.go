package scout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/HerbHall/lanwatch/internal/controlplane"
	"github.com/HerbHall/lanwatch/internal/metrics"
	"github.com/HerbHall/lanwatch/internal/scout/restarter"
	"github.com/HerbHall/lanwatch/internal/testutil"
	"github.com/HerbHall/lanwatch/pkg/models"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{4, 32 * time.Second},
		{5, 60 * time.Second},
		{6, 60 * time.Second},
		{1000, 60 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RetryDelay(tt.failures), "RetryDelay(%d)", tt.failures)
	}
}

func TestHeartbeatSleepCapped(t *testing.T) {
	cfg := testConfig()
	cfg.HeartbeatIntervalMs = 120000
	assert.Equal(t, 60*time.Second, cfg.HeartbeatSleep())
	cfg.HeartbeatIntervalMs = 15000
	assert.Equal(t, 15*time.Second, cfg.HeartbeatSleep())
}

func TestHeartbeatOnce_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cp.heartbeatResp.Segments = []models.Segment{
		testutil.NewSegment("s1", "10.0.0.0/24", 300),
		testutil.NewSegment("s2", "10.0.1.0/24", 300),
	}

	env.agent.heartbeatOnce(context.Background())

	agentID, orgID := env.agent.Identity()
	assert.Equal(t, "agent-1", agentID)
	assert.Equal(t, "org-1", orgID)
	assert.Equal(t, []string{"s1", "s2"}, env.agent.segments.IDs())
	require.Len(t, env.cp.heartbeats, 1)
	assert.Equal(t, "test-host", env.cp.heartbeats[0].Hostname)
	assert.NotEmpty(t, env.cp.heartbeats[0].Version)

	env.cp.heartbeatResp.Segments = env.cp.heartbeatResp.Segments[1:]
	env.agent.heartbeatOnce(context.Background())
	assert.Equal(t, []string{"s2"}, env.agent.segments.IDs())
}

func TestHeartbeatOnce_BackoffAndReset(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cp.heartbeatErr = &controlplane.StatusError{StatusCode: http.StatusServiceUnavailable}

	for i := 0; i < 5; i++ {
		env.agent.heartbeatOnce(context.Background())
	}
	assert.Equal(t, 5, env.agent.hbFailures)
	assert.Equal(t, 60*time.Second, env.agent.retryDelay)

	env.cp.heartbeatErr = nil
	env.agent.heartbeatOnce(context.Background())
	assert.Zero(t, env.agent.hbFailures)
	assert.Equal(t, 2*time.Second, env.agent.retryDelay)
}

func TestHeartbeatOnce_FailureLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
		level   zapcore.Level
	}{
		{"unauthorized", &controlplane.StatusError{StatusCode: http.StatusUnauthorized}, "heartbeat rejected; check api_key", zapcore.ErrorLevel},
		{"bad request", &controlplane.StatusError{StatusCode: http.StatusBadRequest}, "heartbeat rejected by control plane", zapcore.ErrorLevel},
		{"unavailable", &controlplane.StatusError{StatusCode: http.StatusServiceUnavailable}, "heartbeat failed", zapcore.WarnLevel},
		{"rate limited", &controlplane.StatusError{StatusCode: http.StatusTooManyRequests}, "heartbeat failed", zapcore.WarnLevel},
		{"transport", errBoom, "heartbeat failed", zapcore.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.ObservedLogger()
			env := newTestEnv(t, nil)
			env.agent.logger = logger
			env.cp.heartbeatErr = tt.err

			env.agent.heartbeatOnce(context.Background())

			entries := logs.FilterMessage(tt.message).All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
			assert.Equal(t, 1, env.agent.hbFailures)
		})
	}
}

func TestHeartbeatOnce_RetryDelayGauge(t *testing.T) {
	recorder := metrics.New()
	env := newTestEnv(t, nil, func(d *Deps) { d.Metrics = recorder })

	env.cp.heartbeatErr = errBoom
	env.agent.heartbeatOnce(context.Background())
	env.agent.heartbeatOnce(context.Background())
	assert.Contains(t, scrape(t, recorder), "lanwatch_agent_heartbeat_retry_delay_seconds 8")

	env.cp.heartbeatErr = nil
	env.agent.heartbeatOnce(context.Background())
	assert.Contains(t, scrape(t, recorder), "lanwatch_agent_heartbeat_retry_delay_seconds 2")
}

func scrape(t *testing.T, recorder *metrics.Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestHeartbeatOnce_FailureKeepsSegments(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cp.heartbeatResp.Segments = []models.Segment{testutil.NewSegment("s1", "10.0.0.0/24", 300)}
	env.agent.heartbeatOnce(context.Background())

	env.cp.heartbeatErr = errBoom
	env.agent.heartbeatOnce(context.Background())
	assert.Equal(t, 1, env.agent.segments.Len())
}

func TestHeartbeatOnce_UpgradeWarnedOnce(t *testing.T) {
	logger, logs := testutil.ObservedLogger()
	env := newTestEnv(t, nil)
	env.agent.logger = logger
	env.cp.heartbeatResp.UpgradeAvailable = true
	env.cp.heartbeatResp.LatestAgentVersion = "9.9.9"

	env.agent.heartbeatOnce(context.Background())
	env.agent.heartbeatOnce(context.Background())
	assert.Equal(t, 1, logs.FilterMessage("agent upgrade available").Len())

	env.cp.heartbeatResp.LatestAgentVersion = "9.9.10"
	env.agent.heartbeatOnce(context.Background())
	assert.Equal(t, 2, logs.FilterMessage("agent upgrade available").Len())
}

func TestHandleCommands_ScanNow(t *testing.T) {
	env := newTestEnv(t, nil)
	env.disc.devices["10.0.0.0/24"] = []models.DiscoveredDevice{{IPAddress: "10.0.0.7"}}
	env.cp.heartbeatResp.Segments = []models.Segment{testutil.NewSegment("s1", "10.0.0.0/24", 300)}
	env.cp.heartbeatResp.Commands = []models.Command{{ID: "c1", Type: models.CommandScanNow, SegmentID: "s1"}}

	env.agent.heartbeatOnce(context.Background())
	env.agent.scans.Wait()

	acks := env.cp.ackCalls()
	require.Len(t, acks, 1)
	assert.Equal(t, "c1", acks[0].ID)
	assert.Equal(t, models.CommandStatusAccepted, acks[0].Ack.Status)

	got, ok := env.cp.uploaded("s1")
	require.True(t, ok)
	assert.Len(t, got, 1)

	// The same command on the next heartbeat is neither re-run nor re-acked.
	env.agent.heartbeatOnce(context.Background())
	env.agent.scans.Wait()
	assert.Len(t, env.cp.ackCalls(), 1)
	assert.Equal(t, 1, env.disc.callCount())
}

func TestHandleCommands_ScanNowSkipsBusySegment(t *testing.T) {
	env := newTestEnv(t, nil)
	env.agent.segments.Add(testutil.NewSegment("s1", "10.0.0.0/24", 300))
	_, ok := env.agent.segments.TryBeginScan("s1", env.clock.Now())
	require.True(t, ok)

	env.agent.handleCommands(context.Background(), []models.Command{{ID: "c1", Type: models.CommandScanNow}})
	env.agent.scans.Wait()

	assert.Zero(t, env.disc.callCount())
	assert.Equal(t, models.CommandStatusAccepted, env.cp.ackCalls()[0].Ack.Status)
}

func TestHandleCommands_Failures(t *testing.T) {
	env := newTestEnv(t, nil)

	env.agent.handleCommands(context.Background(), []models.Command{
		{ID: "c1", Type: models.CommandScanNow},
		{ID: "c2", Type: models.CommandScanNow, SegmentID: "missing"},
		{ID: "c3", Type: "self_destruct"},
		{ID: "c4", Type: models.CommandRestart},
	})

	acks := env.cp.ackCalls()
	require.Len(t, acks, 4)
	assert.Equal(t, models.CommandStatusFailed, acks[0].Ack.Status)
	assert.Equal(t, models.CommandStatusFailed, acks[1].Ack.Status)
	assert.Equal(t, models.CommandStatusUnsupported, acks[2].Ack.Status)
	assert.Equal(t, models.CommandStatusFailed, acks[3].Ack.Status, "restart without a restarter")
}

func TestHandleCommands_Restart(t *testing.T) {
	r := &fakeRestarter{}
	env := newTestEnv(t, nil, func(d *Deps) {
		d.Restarter = func() restarter.Restarter { return r }
	})

	env.agent.handleCommands(context.Background(), []models.Command{{ID: "r1", Type: models.CommandRestart}})

	acks := env.cp.ackCalls()
	require.Len(t, acks, 1)
	assert.Equal(t, models.CommandStatusAccepted, acks[0].Ack.Status)
	assert.Equal(t, 1, r.restarts)
}

func TestHandleCommands_AckRetried(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cp.ackErr = errBoom
	cmds := []models.Command{{ID: "c1", Type: "noop"}}

	env.agent.handleCommands(context.Background(), cmds)
	env.cp.ackErr = nil
	env.agent.handleCommands(context.Background(), cmds)
	env.agent.handleCommands(context.Background(), cmds)

	assert.Len(t, env.cp.ackCalls(), 2, "failed ack is retried once, then never again")
}

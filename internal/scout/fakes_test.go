package scout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/lanwatch/internal/pulse"
	"github.com/HerbHall/lanwatch/internal/scout/restarter"
	"github.com/HerbHall/lanwatch/internal/testutil"
	"github.com/HerbHall/lanwatch/pkg/models"
)

var errBoom = errors.New("boom")

type ackCall struct {
	ID  string
	Ack models.CommandAck
}

// fakeControlPlane records every call and returns canned responses.
type fakeControlPlane struct {
	mu sync.Mutex

	heartbeatResp *models.HeartbeatResponse
	heartbeatErr  error
	heartbeats    []models.HeartbeatRequest

	devices    []models.MonitoredDevice
	devicesErr error

	uploads   map[string][]models.DiscoveredDevice
	uploadErr error

	reports   [][]models.StatusReport
	reportErr error

	registerResp *models.Segment
	registerErr  error
	registered   []models.AutoSegmentRequest

	acks   []ackCall
	ackErr error
}

// Compile-time interface guard.
var _ ControlPlane = (*fakeControlPlane)(nil)

func newFakeControlPlane() *fakeControlPlane {
	return &fakeControlPlane{
		heartbeatResp: &models.HeartbeatResponse{AgentID: "agent-1", OrganizationID: "org-1"},
		uploads:       make(map[string][]models.DiscoveredDevice),
	}
}

func (f *fakeControlPlane) Heartbeat(_ context.Context, req models.HeartbeatRequest) (*models.HeartbeatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats = append(f.heartbeats, req)
	if f.heartbeatErr != nil {
		return nil, f.heartbeatErr
	}
	resp := *f.heartbeatResp
	return &resp, nil
}

func (f *fakeControlPlane) UploadDiscoveredDevices(_ context.Context, segmentID string, devices []models.DiscoveredDevice) (*models.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploads[segmentID] = devices
	return &models.UploadResult{Created: len(devices)}, nil
}

func (f *fakeControlPlane) DevicesToMonitor(context.Context) ([]models.MonitoredDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices, f.devicesErr
}

func (f *fakeControlPlane) UploadStatusReports(_ context.Context, reports []models.StatusReport) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reportErr != nil {
		return 0, f.reportErr
	}
	f.reports = append(f.reports, reports)
	return len(reports), nil
}

func (f *fakeControlPlane) RegisterAutoSegment(_ context.Context, req models.AutoSegmentRequest) (*models.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, req)
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.registerResp, nil
}

func (f *fakeControlPlane) AckCommand(_ context.Context, id string, ack models.CommandAck) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, ackCall{ID: id, Ack: ack})
	return f.ackErr
}

func (f *fakeControlPlane) setDevices(devices ...models.MonitoredDevice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = devices
}

func (f *fakeControlPlane) uploaded(segmentID string) ([]models.DiscoveredDevice, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.uploads[segmentID]
	return d, ok
}

func (f *fakeControlPlane) lastReports() []models.StatusReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reports) == 0 {
		return nil
	}
	return f.reports[len(f.reports)-1]
}

func (f *fakeControlPlane) ackCalls() []ackCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ackCall(nil), f.acks...)
}

// fakeDiscoverer returns canned devices per CIDR.
type fakeDiscoverer struct {
	mu      sync.Mutex
	devices map[string][]models.DiscoveredDevice
	err     error
	calls   []string
	block   chan struct{}
	panics  bool
}

func (f *fakeDiscoverer) Discover(_ context.Context, cidr string) ([]models.DiscoveredDevice, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cidr)
	block, panics := f.block, f.panics
	f.mu.Unlock()

	if panics {
		panic("discoverer exploded")
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.devices[cidr], nil
}

func (f *fakeDiscoverer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// scriptedChecker replays a status sequence per target. Targets without a
// script report online.
type scriptedChecker struct {
	mu      sync.Mutex
	script  map[string][]models.DeviceStatus
	err     error
	panics  bool
	targets []string
}

var _ pulse.Checker = (*scriptedChecker)(nil)

func (c *scriptedChecker) Check(_ context.Context, target string) (*pulse.CheckResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets = append(c.targets, target)
	if c.panics {
		panic("checker exploded")
	}
	if c.err != nil {
		return nil, c.err
	}

	status := models.DeviceStatusOnline
	if seq := c.script[target]; len(seq) > 0 {
		status = seq[0]
		c.script[target] = seq[1:]
	}
	res := &pulse.CheckResult{Status: status, CheckedAt: time.Now().UTC()}
	if status == models.DeviceStatusOnline {
		rtt := 1.5
		res.ResponseTimeMs = &rtt
	} else {
		res.Error = "no reply"
	}
	return res, nil
}

type fakeRestarter struct {
	mu       sync.Mutex
	restarts int
}

func (r *fakeRestarter) Name() string { return "fake" }
func (r *fakeRestarter) Restart(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restarts++
	return nil
}

type testEnv struct {
	agent   *Agent
	cp      *fakeControlPlane
	disc    *fakeDiscoverer
	checker *scriptedChecker
	clock   *testutil.Clock
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.DashboardURL = "http://dashboard.test"
	cfg.APIKey = "key"
	cfg.AutoScan = false
	return cfg
}

func newTestEnv(t *testing.T, cfg *Config, opts ...func(*Deps)) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	env := &testEnv{
		cp:      newFakeControlPlane(),
		disc:    &fakeDiscoverer{devices: make(map[string][]models.DiscoveredDevice)},
		checker: &scriptedChecker{script: make(map[string][]models.DeviceStatus)},
		clock:   testutil.NewClock(),
	}
	deps := Deps{
		ControlPlane: env.cp,
		Discoverer:   env.disc,
		Checkers: map[models.CheckType]pulse.Checker{
			models.CheckTypePing: env.checker,
			models.CheckTypeTCP:  env.checker,
			models.CheckTypeHTTP: env.checker,
		},
		DetectNetwork: func() (*models.LocalNetwork, error) {
			return &models.LocalNetwork{CIDR: "192.168.1.0/24", InterfaceName: "eth0", Address: "192.168.1.10"}, nil
		},
		Restarter: func() restarter.Restarter { return nil },
		Now:       env.clock.Now,
		Hostname:  "test-host",
	}
	for _, opt := range opts {
		opt(&deps)
	}
	a, err := NewAgent(cfg, deps, zap.NewNop())
	require.NoError(t, err)
	env.agent = a
	return env
}

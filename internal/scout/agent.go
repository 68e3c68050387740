// Package scout is the LanWatch monitoring agent: it keeps a heartbeat with
// the control plane, scans assigned segments, and polls monitored devices,
// dampening status flaps before reporting them.
package scout

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/lanwatch/internal/history"
	"github.com/HerbHall/lanwatch/internal/metrics"
	"github.com/HerbHall/lanwatch/internal/pulse"
	"github.com/HerbHall/lanwatch/internal/recon"
	"github.com/HerbHall/lanwatch/internal/scout/restarter"
	"github.com/HerbHall/lanwatch/pkg/models"
)

const (
	scanTick      = 5 * time.Second
	bootstrapWait = 5 * time.Second
)

// ControlPlane is the subset of the control-plane client the agent uses.
type ControlPlane interface {
	Heartbeat(ctx context.Context, req models.HeartbeatRequest) (*models.HeartbeatResponse, error)
	UploadDiscoveredDevices(ctx context.Context, segmentID string, devices []models.DiscoveredDevice) (*models.UploadResult, error)
	DevicesToMonitor(ctx context.Context) ([]models.MonitoredDevice, error)
	UploadStatusReports(ctx context.Context, reports []models.StatusReport) (int, error)
	RegisterAutoSegment(ctx context.Context, req models.AutoSegmentRequest) (*models.Segment, error)
	AckCommand(ctx context.Context, commandID string, ack models.CommandAck) error
}

// Discoverer finds live hosts in a CIDR.
type Discoverer interface {
	Discover(ctx context.Context, cidr string) ([]models.DiscoveredDevice, error)
}

// Deps are the agent's collaborators. ControlPlane, Discoverer and Checkers
// are required; the rest default to the real implementations or to no-ops.
type Deps struct {
	ControlPlane ControlPlane
	Discoverer   Discoverer
	Checkers     map[models.CheckType]pulse.Checker

	History       history.ScanRepository
	Metrics       *metrics.Recorder
	DetectNetwork func() (*models.LocalNetwork, error)
	Restarter     func() restarter.Restarter
	Now           func() time.Time
	Hostname      string
}

// Agent is the LanWatch monitoring agent.
type Agent struct {
	config   *Config
	logger   *zap.Logger
	cp       ControlPlane
	disc     Discoverer
	checkers map[models.CheckType]pulse.Checker
	history  history.ScanRepository
	metrics  *metrics.Recorder
	detect   func() (*models.LocalNetwork, error)
	restart  func() restarter.Restarter
	now      func() time.Time
	hostname string

	segments *SegmentTable
	tracker  *Tracker

	idMu           sync.RWMutex
	agentID        string
	organizationID string

	// Heartbeat-loop state.
	hbFailures    int
	retryDelay    time.Duration
	warnedVersion string
	commands      map[string]*commandRecord

	scans    sync.WaitGroup
	scanTick time.Duration
	warmUp   time.Duration
}

// NewAgent creates a new agent instance.
func NewAgent(config *Config, deps Deps, logger *zap.Logger) (*Agent, error) {
	if deps.ControlPlane == nil {
		return nil, fmt.Errorf("scout: control plane client is required")
	}
	if deps.Discoverer == nil {
		return nil, fmt.Errorf("scout: discoverer is required")
	}
	if len(deps.Checkers) == 0 {
		return nil, fmt.Errorf("scout: at least one checker is required")
	}

	a := &Agent{
		config:     config,
		logger:     logger,
		cp:         deps.ControlPlane,
		disc:       deps.Discoverer,
		checkers:   deps.Checkers,
		history:    deps.History,
		metrics:    deps.Metrics,
		detect:     deps.DetectNetwork,
		restart:    deps.Restarter,
		now:        deps.Now,
		hostname:   deps.Hostname,
		segments:   NewSegmentTable(),
		tracker:    NewTracker(config.StatusFailureThreshold),
		retryDelay: minRetryDelay,
		commands:   make(map[string]*commandRecord),
		scanTick:   scanTick,
		warmUp:     bootstrapWait,
	}
	if a.detect == nil {
		a.detect = recon.PrimaryNetwork
	}
	if a.restart == nil {
		a.restart = restarter.Detect
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.hostname == "" {
		if h, err := os.Hostname(); err == nil {
			a.hostname = h
		} else {
			a.hostname = "unknown"
		}
	}
	return a, nil
}

// Run starts the heartbeat, scan and status-check loops plus the auto-scan
// bootstrapper, and blocks until ctx is cancelled. A panic in any loop is
// recovered, cancels the others, and is returned as an error.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent starting",
		zap.String("dashboard", a.config.DashboardURL),
		zap.String("hostname", a.hostname),
		zap.String("platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
		zap.Duration("heartbeat_interval", a.config.HeartbeatSleep()),
		zap.Duration("status_check_interval", a.config.StatusCheckInterval()),
		zap.Int("status_failure_threshold", a.config.StatusFailureThreshold),
		zap.Bool("auto_scan", a.config.AutoScan),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.supervise(gctx, "heartbeat", a.heartbeatLoop))
	g.Go(a.supervise(gctx, "scan", a.scanLoop))
	g.Go(a.supervise(gctx, "status", a.statusLoop))
	g.Go(a.supervise(gctx, "bootstrap", a.bootstrap))

	err := g.Wait()
	a.scans.Wait()
	if err != nil {
		a.logger.Error("agent stopped on fatal error", zap.Error(err))
		return err
	}
	a.logger.Info("agent shutting down")
	return nil
}

// supervise wraps a loop so that a panic becomes the group's error.
func (a *Agent) supervise(ctx context.Context, name string, loop func(context.Context) error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("loop panicked",
					zap.String("loop", name),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				err = fmt.Errorf("%s loop panicked: %v", name, r)
			}
		}()
		return loop(ctx)
	}
}

// Identity returns the agent and organization ids learned from the last
// successful heartbeat.
func (a *Agent) Identity() (agentID, organizationID string) {
	a.idMu.RLock()
	defer a.idMu.RUnlock()
	return a.agentID, a.organizationID
}

func (a *Agent) setIdentity(agentID, organizationID string) {
	a.idMu.Lock()
	defer a.idMu.Unlock()
	if a.agentID != agentID {
		a.logger.Info("agent identity assigned",
			zap.String("agent_id", agentID),
			zap.String("organization_id", organizationID),
		)
	}
	a.agentID = agentID
	a.organizationID = organizationID
}

// Segments returns the current segment assignments and scan state.
func (a *Agent) Segments() []SegmentStatus {
	return a.segments.Snapshot()
}

// Tracking returns the hysteresis records keyed by device tracking key.
func (a *Agent) Tracking() map[string]TrackingState {
	return a.tracker.Snapshot()
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

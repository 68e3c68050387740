package scout

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/lanwatch/internal/pulse"
	"github.com/HerbHall/lanwatch/pkg/models"
)

// statusLoop polls monitored devices every status-check interval.
func (a *Agent) statusLoop(ctx context.Context) error {
	for {
		a.checkOnce(ctx)
		if !sleep(ctx, a.config.StatusCheckInterval()) {
			return nil
		}
	}
}

// checkOnce runs one status-check cycle: fetch, probe, dampen, prune, upload.
func (a *Agent) checkOnce(ctx context.Context) {
	all, err := a.cp.DevicesToMonitor(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("fetching monitored devices failed", zap.Error(err))
		}
		return
	}

	devices := make([]models.MonitoredDevice, 0, len(all))
	keep := make(map[string]struct{}, len(all))
	for _, d := range all {
		if !d.IsMonitored {
			continue
		}
		devices = append(devices, d)
		keep[d.TrackingKey()] = struct{}{}
	}

	if len(devices) == 0 {
		if n := a.tracker.Prune(keep); n > 0 {
			a.logger.Debug("pruned tracking state", zap.Int("removed", n))
		}
		a.logger.Debug("no devices to monitor")
		return
	}

	results := a.probeAll(ctx, devices)
	if ctx.Err() != nil {
		return
	}

	reports := make([]models.StatusReport, 0, len(devices))
	for i, d := range devices {
		raw := results[i]
		status, suppressed := a.tracker.Observe(d.TrackingKey(), raw.Status)
		if suppressed {
			st, _ := a.tracker.State(d.TrackingKey())
			a.metrics.FlapSuppressed()
			a.logger.Debug("offline reading suppressed",
				zap.String("device_id", d.ID),
				zap.String("ip", d.IPAddress),
				zap.Int("consecutive_failures", st.ConsecutiveFailures),
				zap.Int("threshold", a.tracker.threshold),
			)
		}
		a.metrics.StatusReported(string(status))

		reports = append(reports, models.StatusReport{
			DeviceID:       d.ID,
			IPAddress:      d.IPAddress,
			Status:         status,
			ResponseTimeMs: raw.ResponseTimeMs,
			CheckType:      d.CheckType,
			CheckedAt:      a.now().UTC().Format(time.RFC3339),
			Error:          raw.Error,
		})
	}

	if n := a.tracker.Prune(keep); n > 0 {
		a.logger.Debug("pruned tracking state", zap.Int("removed", n))
	}

	processed, err := a.cp.UploadStatusReports(ctx, reports)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("uploading status reports failed", zap.Int("reports", len(reports)), zap.Error(err))
		}
		return
	}
	a.logger.Debug("status reports uploaded",
		zap.Int("reports", len(reports)),
		zap.Int("processed", processed),
	)
}

// probeAll probes every device with bounded concurrency. results[i] belongs
// to devices[i] and is never nil.
func (a *Agent) probeAll(ctx context.Context, devices []models.MonitoredDevice) []*pulse.CheckResult {
	results := make([]*pulse.CheckResult, len(devices))

	limit := a.config.Probe.Concurrency
	if limit <= 0 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, d := range devices {
		g.Go(func() error {
			results[i] = a.probe(ctx, d)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// probe runs the device's check. Probe errors and panics become an unknown
// result carrying the error text.
func (a *Agent) probe(ctx context.Context, d models.MonitoredDevice) (res *pulse.CheckResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("probe panicked",
				zap.String("device_id", d.ID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			res = unknownResult(fmt.Sprintf("probe panic: %v", r))
		}
		a.metrics.ProbeObserved(string(d.CheckType), time.Since(start))
	}()

	target, err := probeTarget(d)
	if err != nil {
		return unknownResult(err.Error())
	}
	checker, ok := a.checkers[d.CheckType]
	if !ok {
		return unknownResult(fmt.Sprintf("no checker for check type %q", d.CheckType))
	}

	res, err = checker.Check(ctx, target)
	if err != nil {
		a.logger.Debug("probe error",
			zap.String("device_id", d.ID),
			zap.String("target", target),
			zap.Error(err),
		)
		return unknownResult(err.Error())
	}
	if res == nil {
		return unknownResult("probe returned no result")
	}
	return res
}

// probeTarget maps a device to the address its checker expects.
func probeTarget(d models.MonitoredDevice) (string, error) {
	switch d.CheckType {
	case models.CheckTypePing:
		return d.IPAddress, nil
	case models.CheckTypeTCP:
		if d.Port <= 0 || d.Port > 65535 {
			return "", fmt.Errorf("tcp check requires a port, got %d", d.Port)
		}
		return net.JoinHostPort(d.IPAddress, strconv.Itoa(d.Port)), nil
	case models.CheckTypeHTTP:
		if d.URL == "" {
			return "", fmt.Errorf("http check requires a url")
		}
		return d.URL, nil
	default:
		return "", fmt.Errorf("unsupported check type %q", d.CheckType)
	}
}

func unknownResult(msg string) *pulse.CheckResult {
	return &pulse.CheckResult{
		Status:    models.DeviceStatusUnknown,
		Error:     msg,
		CheckedAt: time.Now().UTC(),
	}
}

package scout

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/lanwatch/internal/controlplane"
	"github.com/HerbHall/lanwatch/internal/version"
	"github.com/HerbHall/lanwatch/pkg/models"
)

const (
	minRetryDelay = 2 * time.Second
	maxRetryDelay = 60 * time.Second
)

// RetryDelay returns the heartbeat retry delay after the given number of
// consecutive failures: 2s doubled per failure, capped at 60s.
func RetryDelay(failures int) time.Duration {
	d := minRetryDelay
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return d
}

// heartbeatLoop sends a heartbeat every min(interval, 60s) until ctx is done.
func (a *Agent) heartbeatLoop(ctx context.Context) error {
	for {
		a.heartbeatOnce(ctx)
		if !sleep(ctx, a.config.HeartbeatSleep()) {
			return nil
		}
	}
}

func (a *Agent) heartbeatOnce(ctx context.Context) {
	resp, err := a.cp.Heartbeat(ctx, models.HeartbeatRequest{
		Version:  version.Short(),
		Hostname: a.hostname,
		Name:     a.config.AgentName,
		Platform: fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.hbFailures++
		a.retryDelay = RetryDelay(a.hbFailures)
		a.metrics.HeartbeatFailed(a.retryDelay)

		fields := []zap.Field{
			zap.Int("consecutive_failures", a.hbFailures),
			zap.Duration("retry_delay", a.retryDelay),
			zap.Error(err),
		}
		var se *controlplane.StatusError
		switch {
		case controlplane.IsUnauthorized(err):
			a.logger.Error("heartbeat rejected; check api_key", fields...)
		case errors.As(err, &se) && !controlplane.IsRetryable(err):
			a.logger.Error("heartbeat rejected by control plane", fields...)
		default:
			a.logger.Warn("heartbeat failed", fields...)
		}
		return
	}

	a.hbFailures = 0
	a.retryDelay = minRetryDelay
	a.metrics.HeartbeatSucceeded(a.retryDelay)

	a.setIdentity(resp.AgentID, resp.OrganizationID)

	added, removed := a.segments.Reconcile(resp.Segments)
	a.metrics.SetSegments(a.segments.Len())
	if added > 0 || removed > 0 {
		a.logger.Info("segment assignments updated",
			zap.Int("added", added),
			zap.Int("removed", removed),
			zap.Int("total", a.segments.Len()),
		)
	}

	a.checkUpgrade(resp)
	a.handleCommands(ctx, resp.Commands)
}

// checkUpgrade warns once per advertised version when a newer agent exists.
func (a *Agent) checkUpgrade(resp *models.HeartbeatResponse) {
	if !version.UpgradeAvailable(version.Short(), resp.LatestAgentVersion, resp.UpgradeAvailable) {
		return
	}
	latest := resp.LatestAgentVersion
	if latest == "" {
		latest = "unspecified"
	}
	if latest == a.warnedVersion {
		return
	}
	a.warnedVersion = latest
	a.logger.Warn("agent upgrade available",
		zap.String("current", version.Short()),
		zap.String("latest", latest),
	)
}

package pulse

import (
	"context"
	"fmt"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/HerbHall/lanwatch/pkg/models"
)

// Checker executes a health check against a target and returns the result.
// An error means the probe itself could not run; an unreachable target is
// reported through the result, not the error.
type Checker interface {
	Check(ctx context.Context, target string) (*CheckResult, error)
}

// ICMPChecker pings targets using ICMP via pro-bing.
type ICMPChecker struct {
	timeout time.Duration
	count   int
}

// NewICMPChecker creates a new ICMP checker with the given timeout and ping count.
func NewICMPChecker(timeout time.Duration, count int) *ICMPChecker {
	return &ICMPChecker{
		timeout: timeout,
		count:   count,
	}
}

// Check pings the target. All packets lost is offline, partial loss is degraded.
func (c *ICMPChecker) Check(ctx context.Context, target string) (*CheckResult, error) {
	pinger, err := probing.NewPinger(target)
	if err != nil {
		return nil, fmt.Errorf("create pinger: %w", err)
	}

	pinger.Count = c.count
	pinger.Timeout = c.timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	// Run pinger in a goroutine for context cancellation.
	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case runErr := <-done:
		if runErr != nil {
			return nil, fmt.Errorf("ping %s: %w", target, runErr)
		}
		return icmpResult(pinger.Statistics()), nil

	case <-ctx.Done():
		pinger.Stop()
		<-done
		return failed(models.DeviceStatusUnknown, "check cancelled"), nil
	}
}

// icmpResult maps pro-bing statistics onto a device status.
func icmpResult(stats *probing.Statistics) *CheckResult {
	result := &CheckResult{CheckedAt: time.Now().UTC()}

	switch {
	case stats.PacketsRecv == 0:
		result.Status = models.DeviceStatusOffline
		result.Error = "all packets lost"
		return result
	case stats.PacketLoss > 0:
		// Any reply means the host is up; the loss is only noted.
		result.Status = models.DeviceStatusOnline
		result.Error = fmt.Sprintf("%.0f%% packet loss", stats.PacketLoss)
	default:
		result.Status = models.DeviceStatusOnline
	}

	result.ResponseTimeMs = millis(stats.AvgRtt)
	return result
}

// NewCheckers returns the default probe set keyed by check type.
func NewCheckers(timeout time.Duration, pingCount int) map[models.CheckType]Checker {
	return map[models.CheckType]Checker{
		models.CheckTypePing: NewICMPChecker(timeout, pingCount),
		models.CheckTypeTCP:  NewTCPChecker(timeout),
		models.CheckTypeHTTP: NewHTTPChecker(timeout),
	}
}

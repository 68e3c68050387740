package pulse

import (
	"context"
	"net"
	"time"

	"github.com/HerbHall/lanwatch/pkg/models"
)

// TCPChecker reports a target online when a TCP connection can be opened.
type TCPChecker struct {
	dialer *net.Dialer
}

// NewTCPChecker creates a TCP connect checker with the given dial timeout.
func NewTCPChecker(timeout time.Duration) *TCPChecker {
	return &TCPChecker{dialer: &net.Dialer{Timeout: timeout}}
}

// Check dials target, which must be in host:port form.
func (c *TCPChecker) Check(ctx context.Context, target string) (*CheckResult, error) {
	if _, _, err := net.SplitHostPort(target); err != nil {
		return nil, err
	}

	start := time.Now()
	conn, err := c.dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		if ctx.Err() != nil {
			return failed(models.DeviceStatusUnknown, "check cancelled"), nil
		}
		return failed(models.DeviceStatusOffline, err.Error()), nil
	}
	elapsed := time.Since(start)
	_ = conn.Close()

	return &CheckResult{
		Status:         models.DeviceStatusOnline,
		ResponseTimeMs: millis(elapsed),
		CheckedAt:      time.Now().UTC(),
	}, nil
}

package pulse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/HerbHall/lanwatch/internal/version"
	"github.com/HerbHall/lanwatch/pkg/models"
)

// HTTPChecker issues a GET against a URL.
// 2xx and 3xx are online, 4xx and 5xx degraded, transport failures offline.
type HTTPChecker struct {
	client *http.Client
}

// NewHTTPChecker creates an HTTP checker with the given overall request timeout.
func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{client: &http.Client{Timeout: timeout}}
}

// Check requests target and classifies the response.
func (c *HTTPChecker) Check(ctx context.Context, target string) (*CheckResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "lanwatch-agent/"+version.Short())

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return failed(models.DeviceStatusUnknown, "check cancelled"), nil
		}
		return failed(models.DeviceStatusOffline, err.Error()), nil
	}
	elapsed := time.Since(start)
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	result := &CheckResult{
		Status:         models.DeviceStatusOnline,
		ResponseTimeMs: millis(elapsed),
		CheckedAt:      time.Now().UTC(),
	}
	if resp.StatusCode >= 400 {
		result.Status = models.DeviceStatusDegraded
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return result, nil
}

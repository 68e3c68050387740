// Package controlplane is the HTTP/JSON client the agent uses to talk to the
// LanWatch dashboard API.
package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/lanwatch/internal/version"
	"github.com/HerbHall/lanwatch/pkg/models"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// Client calls the control plane on behalf of one agent.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	userAgent  string
}

// Option customizes a Client.
type Option func(*Client)

// WithRateLimit caps outgoing requests to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// New creates a client for the dashboard at baseURL authenticating with apiKey.
func New(baseURL, apiKey string, logger *zap.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse dashboard url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("dashboard url %q: scheme must be http or https", baseURL)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	c := &Client{
		baseURL:    u,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		logger:     logger,
		userAgent:  "lanwatch-agent/" + version.Short(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Heartbeat reports liveness and returns the agent's current assignment.
func (c *Client) Heartbeat(ctx context.Context, req models.HeartbeatRequest) (*models.HeartbeatResponse, error) {
	var resp models.HeartbeatResponse
	if err := c.do(ctx, http.MethodPost, "/api/agent/heartbeat", req, &resp); err != nil {
		return nil, err
	}
	if resp.AgentID == "" {
		return nil, fmt.Errorf("heartbeat response missing agent_id")
	}
	return &resp, nil
}

// UploadDiscoveredDevices sends the result of a segment scan.
func (c *Client) UploadDiscoveredDevices(ctx context.Context, segmentID string, devices []models.DiscoveredDevice) (*models.UploadResult, error) {
	body := struct {
		Devices []models.DiscoveredDevice `json:"devices"`
	}{Devices: devices}

	var resp models.UploadResult
	path := "/api/agent/segments/" + url.PathEscape(segmentID) + "/devices"
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DevicesToMonitor returns every device the control plane associates with this agent.
func (c *Client) DevicesToMonitor(ctx context.Context) ([]models.MonitoredDevice, error) {
	var resp struct {
		Devices []models.MonitoredDevice `json:"devices"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/agent/devices", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

// UploadStatusReports sends one status-check cycle and returns the processed count.
func (c *Client) UploadStatusReports(ctx context.Context, reports []models.StatusReport) (int, error) {
	body := struct {
		Reports []models.StatusReport `json:"reports"`
	}{Reports: reports}

	var resp struct {
		Processed int `json:"processed"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/agent/status", body, &resp); err != nil {
		return 0, err
	}
	return resp.Processed, nil
}

// RegisterAutoSegment registers a locally detected network as a new segment.
func (c *Client) RegisterAutoSegment(ctx context.Context, req models.AutoSegmentRequest) (*models.Segment, error) {
	var seg models.Segment
	if err := c.do(ctx, http.MethodPost, "/api/agent/segments/auto", req, &seg); err != nil {
		return nil, err
	}
	if seg.ID == "" {
		return nil, fmt.Errorf("auto segment response missing id")
	}
	return &seg, nil
}

// AckCommand reports the outcome of a remote command.
func (c *Client) AckCommand(ctx context.Context, commandID string, ack models.CommandAck) error {
	path := "/api/agent/commands/" + url.PathEscape(commandID) + "/ack"
	return c.do(ctx, http.MethodPost, path, ack, nil)
}

// do performs one JSON request. out may be nil when the body is ignored.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s %s: %w", method, path, err)
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("control plane request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readStatusError(resp, method, path)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func readStatusError(resp *http.Response, method, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(raw)),
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/problem+json") {
		var p Problem
		if err := json.Unmarshal(raw, &p); err == nil {
			se.Problem = &p
		}
	}
	return se
}

// Package server is the agent's local status endpoint. It exposes the
// orchestrator's in-memory state, the scan journal and Prometheus metrics,
// and listens on loopback unless configured otherwise.
package server

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/lanwatch/internal/history"
	"github.com/HerbHall/lanwatch/internal/scout"
	"github.com/HerbHall/lanwatch/internal/version"
)

const versionHeader = "X-LanWatch-Version"

// AgentState is the read side of the running agent.
type AgentState interface {
	Identity() (agentID, organizationID string)
	Segments() []scout.SegmentStatus
	Tracking() map[string]scout.TrackingState
}

// DeviceState is one row of GET /api/v1/devices.
type DeviceState struct {
	Key                 string `json:"key"`
	Phase               string `json:"phase"`
	LastStatus          string `json:"last_status"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

// Server serves the status API.
type Server struct {
	httpServer *http.Server
	agent      AgentState
	scans      history.ScanRepository
	logger     *zap.Logger
	mux        *http.ServeMux
	started    time.Time
}

// New creates a status server. scans may be nil when the journal is disabled;
// metrics may be nil to omit /metrics.
func New(addr string, agent AgentState, scans history.ScanRepository, metrics http.Handler, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		agent:   agent,
		scans:   scans,
		logger:  logger,
		mux:     mux,
		started: time.Now(),
	}

	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/segments", s.handleSegments)
	mux.HandleFunc("GET /api/v1/devices", s.handleDevices)
	mux.HandleFunc("GET /api/v1/scans", s.handleScans)
	mux.HandleFunc("GET /api/v1/scans/{id}", s.handleScan)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return s
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve listens on the configured address until Shutdown is called.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	s.logger.Info("status endpoint listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down status endpoint")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	agentID, orgID := s.agent.Identity()
	s.writeJSON(w, map[string]any{
		"status":          "ok",
		"service":         "lanwatch-agent",
		"version":         version.Map(),
		"agent_id":        agentID,
		"organization_id": orgID,
		"segments":        len(s.agent.Segments()),
		"uptime_seconds":  int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleSegments(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.agent.Segments())
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	tracking := s.agent.Tracking()
	out := make([]DeviceState, 0, len(tracking))
	for key, st := range tracking {
		out = append(out, DeviceState{
			Key:                 key,
			Phase:               st.Phase().String(),
			LastStatus:          string(st.LastStatus),
			ConsecutiveFailures: st.ConsecutiveFailures,
		})
	}
	slices.SortFunc(out, func(a, b DeviceState) int { return cmp.Compare(a.Key, b.Key) })
	s.writeJSON(w, out)
}

func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	if s.scans == nil {
		NotFound(w, "scan history is disabled", r.URL.Path)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			BadRequest(w, "limit must be a positive integer", r.URL.Path)
			return
		}
		limit = n
	}

	scans, err := s.scans.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing scans failed", zap.Error(err))
		InternalError(w, "failed to list scans", r.URL.Path)
		return
	}
	s.writeJSON(w, scans)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.scans == nil {
		NotFound(w, "scan history is disabled", r.URL.Path)
		return
	}

	id := r.PathValue("id")
	scan, err := s.scans.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		NotFound(w, fmt.Sprintf("scan %s not found", id), r.URL.Path)
		return
	}
	if err != nil {
		s.logger.Error("loading scan failed", zap.String("scan_id", id), zap.Error(err))
		InternalError(w, "failed to load scan", r.URL.Path)
		return
	}
	s.writeJSON(w, scan)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(versionHeader, version.Short())
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("writing response failed", zap.Error(err))
	}
}

// Package health provides HTTP endpoints for liveness, readiness and
// Prometheus metrics.
package health

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Health status values.
const (
	StatusHealthy  = "healthy"
	StatusReady    = "ready"
	StatusDegraded = "degraded"
	StatusNotReady = "not_ready"
)

// Checker reports an error when a dependency the bot cannot work without is
// unavailable, such as the state store or the gateway session.
type Checker func(ctx context.Context) error

// DegradedChecker reports a condition where the bot still answers but some
// function is switched off, such as locked record creation.
type DegradedChecker func(ctx context.Context) (degraded bool, message string)

// ComponentStatus is the result of one Checker.
type ComponentStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// DegradedStatus is a DegradedChecker that fired.
type DegradedStatus struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Response is the body of /health and /ready.
type Response struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
	Components []ComponentStatus `json:"components,omitempty"`
	Degraded   []DegradedStatus  `json:"degraded,omitempty"`
}

// Server serves /health, /ready and /metrics.
type Server struct {
	port    int
	mux     *http.ServeMux
	server  *http.Server
	addr    net.Addr
	logger  *slog.Logger
	timeout time.Duration
	version string
	started time.Time

	mu       sync.RWMutex
	checkers map[string]Checker
	degraded map[string]DegradedChecker
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTimeout sets the time budget shared by all checks of one request.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.timeout = timeout
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// New creates a health server for port. Port 0 picks a free port on Start.
func New(port int, opts ...Option) *Server {
	s := &Server{
		port:     port,
		mux:      http.NewServeMux(),
		logger:   slog.Default(),
		timeout:  5 * time.Second,
		started:  time.Now(),
		checkers: make(map[string]Checker),
		degraded: make(map[string]DegradedChecker),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// RegisterChecker adds a readiness checker.
func (s *Server) RegisterChecker(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
	s.logger.Debug("registered readiness checker", slog.String("name", name))
}

// RegisterDegradedChecker adds a degraded state checker.
func (s *Server) RegisterDegradedChecker(name string, checker DegradedChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.degraded[name] = checker
	s.logger.Debug("registered degraded checker", slog.String("name", name))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Response{
		Status:  StatusHealthy,
		Version: s.version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checkers := make(map[string]Checker, len(s.checkers))
	for name, c := range s.checkers {
		checkers[name] = c
	}
	degraded := make(map[string]DegradedChecker, len(s.degraded))
	for name, c := range s.degraded {
		degraded[name] = c
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	resp := Response{Status: StatusReady}
	for name, check := range checkers {
		status := ComponentStatus{Name: name, Healthy: true}
		if err := check(ctx); err != nil {
			status.Healthy = false
			status.Error = err.Error()
			resp.Status = StatusNotReady
			s.logger.Warn("readiness check failed",
				slog.String("component", name),
				slog.String("error", err.Error()),
			)
		}
		resp.Components = append(resp.Components, status)
	}
	for name, check := range degraded {
		if ok, msg := check(ctx); ok {
			resp.Degraded = append(resp.Degraded, DegradedStatus{Name: name, Message: msg})
		}
	}
	slices.SortFunc(resp.Components, func(a, b ComponentStatus) int { return cmp.Compare(a.Name, b.Name) })
	slices.SortFunc(resp.Degraded, func(a, b DegradedStatus) int { return cmp.Compare(a.Name, b.Name) })

	code := http.StatusOK
	switch {
	case resp.Status == StatusNotReady:
		code = http.StatusServiceUnavailable
	case len(resp.Degraded) > 0:
		resp.Status = StatusDegraded
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Start binds the port and serves in the background. Bind failures are
// returned instead of logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("health server: %w", err)
	}
	s.addr = ln.Addr()
	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("health server listening", slog.String("addr", s.addr.String()))
		if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("health server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

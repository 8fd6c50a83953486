// Package ops serves the operational endpoints: health with dependency
// probes, a status snapshot, and Prometheus metrics.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Config holds the ops server settings. The default bind is loopback;
// exposing the port further is a deployment decision.
type Config struct {
	ListenAddr            string `yaml:"listen_addr" default:"127.0.0.1:9090" validate:"required"`
	ReadTimeoutSeconds    int    `yaml:"read_timeout_seconds" default:"10" validate:"gt=0"`
	WriteTimeoutSeconds   int    `yaml:"write_timeout_seconds" default:"15" validate:"gt=0"`
	IdleTimeoutSeconds    int    `yaml:"idle_timeout_seconds" default:"60" validate:"gt=0"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" default:"5" validate:"gt=0"`
}

// Check probes one dependency for the health endpoint.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// StatusFunc supplies the payload served on the status endpoint.
type StatusFunc func() interface{}

// Server is the ops HTTP server.
type Server struct {
	cfg     Config
	httpSrv *http.Server
	checks  []Check
	status  StatusFunc
	started time.Time
}

// NewServer wires the router. It fails fast when the listen address is
// already taken so a second instance exits loudly instead of running
// blind.
func NewServer(cfg Config, gatherer prometheus.Gatherer, checks []Check, status StatusFunc) (*Server, error) {
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("ops listen address %s unavailable: %w", cfg.ListenAddr, err)
	}
	ln.Close()

	s := &Server{
		cfg:     cfg,
		checks:  checks,
		status:  status,
		started: time.Now(),
	}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.timeoutMiddleware)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.httpSrv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeoutSeconds) * time.Second,
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start serves until Shutdown. The expected close error is filtered so
// a clean shutdown returns nil.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.ListenAddr).Msg("ops server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ops server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type healthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
	}

	code := http.StatusOK
	for _, c := range s.checks {
		if err := c.Probe(r.Context()); err != nil {
			resp.Checks[c.Name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "ok"
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("ops response write failed")
	}
}

type ctxKey int

const requestIDKey ctxKey = iota

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestIDMiddleware tags every request with a short id, honoring one
// the caller already set.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()[:8]
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.Debug().
			Str("request_id", requestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.status).
			Dur("took", time.Since(start)).
			Msg("ops request")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	timeout := time.Duration(s.cfg.RequestTimeoutSeconds) * time.Second
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

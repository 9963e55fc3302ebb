package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/star/depthscale/internal/atmos"
	"github.com/star/depthscale/internal/auth"
	"github.com/star/depthscale/internal/eos"
	"github.com/star/depthscale/internal/health"
	"github.com/star/depthscale/internal/httputil"
	"github.com/star/depthscale/internal/metrics"
)

// Config holds HTTP service limits.
type Config struct {
	Auth             auth.Config
	MaxPoints        int   // largest stratification accepted per conversion
	MaxBodyBytes     int64 // request body cap
	MaxInFlightPerIP int   // concurrent conversions per client
	MaxInFlightTotal int   // concurrent conversions across all clients
	TrustProxy       bool  // take client addresses from X-Forwarded-For/X-Real-IP
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		MaxPoints:        5000,
		MaxBodyBytes:     4 << 20,
		MaxInFlightPerIP: 4,
		MaxInFlightTotal: 64,
	}
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, cfg Config, e eos.EOS, lib *atmos.Library) *Server {
	mux := http.NewServeMux()

	h := &handlers{
		cfg:     cfg,
		eos:     e,
		lib:     lib,
		limiter: newConversionLimiter(cfg.MaxInFlightPerIP, cfg.MaxInFlightTotal),
		logger:  logger.With("component", "api"),
	}

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(lib.Ready))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /api/v1/convert", h.limit(h.convert))
	mux.HandleFunc("GET /api/v1/models", h.listModels)
	mux.HandleFunc("PUT /api/v1/models/{name}", h.putModel)
	mux.HandleFunc("GET /api/v1/models/{name}", h.getModel)
	mux.HandleFunc("GET /api/v1/models/{name}/convert", h.limit(h.convertModel))

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

const requestIDHeader = "X-Request-ID"

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := r.Header.Get(requestIDHeader)
			if _, err := uuid.Parse(reqID); err != nil {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

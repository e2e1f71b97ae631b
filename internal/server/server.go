package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/plumeworks/plume/internal/install"
	"github.com/plumeworks/plume/internal/model"
	"github.com/plumeworks/plume/internal/ratelimit"
)

// Server is the Plume HTTP server hosting the install wizard API.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Config holds all dependencies and settings for creating a Server.
type Config struct {
	Install *install.Service
	Logger  *slog.Logger

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string

	// Limiter throttles mutating install endpoints per client IP.
	// Defaults to NoopLimiter when nil.
	Limiter ratelimit.Limiter

	// Optional embedded assets (nil = disabled).
	UIFS        fs.FS  // Embedded wizard filesystem (SPA).
	OpenAPISpec []byte // Embedded OpenAPI YAML.
}

// New creates a new HTTP server with all routes configured.
func New(cfg Config) *Server {
	h := NewHandlers(cfg.Install, cfg.Version)
	h.openapiSpec = cfg.OpenAPISpec

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}
	deny := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, r, http.StatusTooManyRequests, model.ErrCodeRateLimited,
			"too many requests, slow down")
	})
	throttled := func(next http.HandlerFunc) http.Handler {
		return ratelimit.Middleware(limiter, ratelimit.IPKeyFunc, cfg.Logger, deny, next)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.HandleHealth)

	// Install wizard. Each mutating route maps 1:1 to one composite-lock
	// guarded operation; status is read-only and lock-free. Mutating routes
	// are IP rate limited: the wizard is unauthenticated by nature, so
	// throttling is the only brute-force defense for admin creation.
	mux.HandleFunc("GET /install/status", h.HandleStatus)
	mux.Handle("POST /install/database/test", throttled(h.HandleDatabaseTest))
	mux.Handle("POST /install/database/config", throttled(h.HandleDatabaseConfig))
	mux.Handle("POST /install/database/init", throttled(h.HandleDatabaseInit))
	mux.Handle("POST /install/database/repair", throttled(h.HandleDatabaseRepair))
	mux.Handle("POST /install/admin", throttled(h.HandleCreateAdmin))
	mux.Handle("POST /install/complete", throttled(h.HandleComplete))
	mux.Handle("POST /install/config/reload", throttled(h.HandleConfigReload))

	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// SPA: serve the embedded wizard at the root path. Registered last so
	// all API routes take priority via the mux's longest-match rule.
	if cfg.UIFS != nil {
		mux.Handle("/", newSPAHandler(cfg.UIFS))
		cfg.Logger.Info("ui enabled, serving install wizard at /")
	}

	var handler http.Handler = mux
	handler = tracingMiddleware(handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe starts the server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

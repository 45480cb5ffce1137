// Package web serves loaded datasets over HTTP: a JSON read API, the
// selection and derived-column mutation API, exports, and HTML previews.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/grapher/internal/catalog"
	"github.com/JonMunkholm/grapher/internal/config"
	"github.com/JonMunkholm/grapher/internal/web/middleware"
)

// Server is the HTTP server over a dataset catalog.
type Server struct {
	loader   *catalog.Loader
	registry *catalog.Registry
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a Server serving the datasets of loader's registry.
func NewServer(loader *catalog.Loader, cfg *config.Config) *Server {
	s := &Server{
		loader:   loader,
		registry: loader.Registry(),
		cfg:      cfg,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Get("/datasets/{id}", s.handlePreview)

	s.router.Route("/api", func(r chi.Router) {
		auth := middleware.APIKeyAuth(s.cfg.Security)

		r.Get("/datasets", s.handleListDatasets)
		r.With(auth, s.uploadLimiter()).Post("/datasets", s.handleUpload)

		r.Route("/datasets/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetDataset)
			r.Get("/rows", s.handleRows)
			r.Get("/selected", s.handleSelectedRows)
			r.Get("/entities-with", s.handleEntitiesWith)
			r.Get("/export.{format}", s.handleExport)

			// Mutations
			r.Group(func(r chi.Router) {
				r.Use(auth)

				r.Delete("/", s.handleDeleteDataset)

				r.Put("/selection", s.handleSetSelection)
				r.Delete("/selection", s.handleClearSelection)
				r.Post("/selection/{entity}", s.handleSelectEntity)
				r.Delete("/selection/{entity}", s.handleDeselectEntity)

				r.Post("/filters", s.handleAddEntityFilter)
				r.Post("/rolling-averages", s.handleAddRollingAverage)
				r.Delete("/columns/{slug}", s.handleDeleteColumn)
			})
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr, "datasets", s.registry.Count())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(csp bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if csp {
				// Previews use inline styles only.
				w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// uploadLimiter rate limits uploads per client IP. It is a no-op when
// UploadsPerMinute is zero.
func (s *Server) uploadLimiter() func(http.Handler) http.Handler {
	limit := s.cfg.Security.UploadsPerMinute
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return newRateLimiter(limit, time.Minute).middleware
}

// rateLimiter is a fixed-window limiter keyed by client IP.
type rateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      int           // requests per window
	window    time.Duration // time window
	lastPrune time.Time
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		visitors:  make(map[string]*visitor),
		rate:      rate,
		window:    window,
		lastPrune: time.Now(),
	}
}

// allow consumes a token for ip if one is left.
func (rl *rateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Drop stale visitors once per window instead of running a sweeper.
	if now.Sub(rl.lastPrune) > rl.window {
		for k, v := range rl.visitors {
			if now.Sub(v.lastReset) > rl.window*2 {
				delete(rl.visitors, k)
			}
		}
		rl.lastPrune = now
	}

	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r), time.Now()) {
			w.Header().Set("Retry-After", "60")
			writeJSONStatus(w, http.StatusTooManyRequests, ErrorResponse{
				Error:   "rate limit exceeded",
				Message: "Too many uploads",
				Action:  "Wait a minute and try again",
				Code:    "RATE001",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON. Encoding errors are only logged since
// headers are already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// Package rest implements the HTTP transport: a thin chi-routed adapter
// over the Engine Facade's five operations. No retrieval logic lives
// here.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/haneul-ai/recall/internal/engine"
	"github.com/haneul-ai/recall/internal/logger"
)

// Config configures the REST server.
type Config struct {
	Host string
	Port int

	// RateLimit is the steady-state requests/sec admitted per server
	// instance; Burst is the token bucket's burst capacity.
	RateLimit float64
	Burst     int
}

// DefaultConfig returns sane defaults.
func DefaultConfig() Config {
	return Config{Host: "0.0.0.0", Port: 8080, RateLimit: 50, Burst: 100}
}

// NewRouter builds the chi router wired to facade.
func NewRouter(cfg Config, facade *engine.Facade, log logger.Logger) chi.Router {
	if log == nil {
		log = logger.Global()
	}
	h := NewHandler(facade, log)

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))
	r.Use(rateLimitMiddleware(limiter))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/memories", func(r chi.Router) {
			r.Post("/", h.Store)
			r.Get("/{id}", h.Get)
			r.Delete("/{id}", h.Delete)
		})
		r.Post("/search", h.Search)
		r.Get("/stats", h.Stats)
	})

	return r
}

// rateLimitMiddleware admits requests up to limiter's rate, returning 429
// once the token bucket is exhausted, pacing load onto the Engine Facade
// under §5's concurrency model.
func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, ErrCodeBusy, "request rate exceeded", getRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Server owns the HTTP listener lifecycle.
type Server struct {
	httpServer *http.Server
	log        logger.Logger
}

// NewServer wires a Server ready to ListenAndServe.
func NewServer(cfg Config, facade *engine.Facade, log logger.Logger) *Server {
	if log == nil {
		log = logger.Global()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler: NewRouter(cfg, facade, log),
		},
		log: log,
	}
}

// Run starts serving and blocks until ctx is canceled, then performs a
// graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("rest server listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

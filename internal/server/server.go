// Package server exposes a match store to remote devices over HTTP, with
// websocket streams for subscriptions.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/roach88/liveledger/internal/live"
)

// RoleHeader carries the caller's role for privileged operations.
const RoleHeader = "X-Role"

// Store is the match store the server fronts.
// Implemented by *store.Store.
type Store interface {
	live.Store
	Ping(ctx context.Context) error
}

// Server routes requests to a Store.
type Server struct {
	store   Store
	auth    live.Authorizer
	origins []string
	timeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed browser origins.
// Default: all origins
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithAuthorizer sets the capability check for privileged operations.
func WithAuthorizer(a live.Authorizer) Option {
	return func(s *Server) { s.auth = a }
}

// WithRequestTimeout bounds non-streaming requests.
// Default: 30s
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a server over st.
func New(st Store, opts ...Option) *Server {
	s := &Server{
		store:   st,
		auth:    live.DefaultAuthorizer,
		origins: []string{"*"},
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", RoleHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(s.timeout))

			r.Post("/matches", s.createMatch)
			r.Get("/matches", s.listMatches)
			r.Get("/matches/{id}", s.getMatch)
			r.Patch("/matches/{id}", s.updateMatch)
			r.Delete("/matches/{id}", s.deleteMatch)
			r.Get("/matches/{id}/events", s.listEvents)
			r.Post("/matches/{id}/events", s.appendEvent)
		})

		// Streams outlive the request timeout.
		r.Get("/matches/{id}/stream", s.streamMatch)
		r.Get("/matches/{id}/events/stream", s.streamEvents)
		r.Get("/active/stream", s.streamActive)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("match store server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("match store server stopped")
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()))
	})
}

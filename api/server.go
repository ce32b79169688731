package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jonwraymond/phoenix/auth"
	"github.com/jonwraymond/phoenix/cache"
	"github.com/jonwraymond/phoenix/health"
	"github.com/jonwraymond/phoenix/observe"
	"github.com/jonwraymond/phoenix/recovery"
	"github.com/jonwraymond/phoenix/resilience"
)

// Config wires the server to the running control loops.
type Config struct {
	Monitor *health.Monitor
	Engine  *recovery.Engine

	// Authenticator guards /v1. Nil leaves the API open.
	Authenticator auth.Authenticator

	// Authorizer checks roles after authentication.
	// Default: auth.DefaultRoleAuthorizer()
	Authorizer auth.Authorizer

	// Cache holds stats and incident snapshots for SnapshotTTL.
	// Default: an in-memory cache
	Cache       cache.Cache
	SnapshotTTL time.Duration

	// Breakers, when set, is served on /v1/breakers.
	Breakers *resilience.BreakerSet

	// Metrics is mounted on /metrics when set.
	Metrics http.Handler

	Logger observe.Logger
}

// Server is the operator API.
type Server struct {
	config     Config
	snapshots  *cache.Middleware
	generation atomic.Uint64
	router     chi.Router
}

// NewServer builds the router.
func NewServer(config Config) *Server {
	if config.Authorizer == nil {
		config.Authorizer = auth.DefaultRoleAuthorizer()
	}
	if config.Cache == nil {
		config.Cache = cache.NewMemoryCache(nil)
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	config.Logger = config.Logger.With(observe.Field{Key: "component", Value: "api"})

	policy := cache.Policy{DefaultTTL: config.SnapshotTTL}
	s := &Server{
		config:    config,
		snapshots: cache.NewMiddleware(config.Cache, nil, policy),
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", health.LivenessHandler())
	r.Get("/readyz", health.ReadinessHandler(s.config.Monitor))
	if s.config.Metrics != nil {
		r.Handle("/metrics", s.config.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		if s.config.Authenticator != nil {
			r.Use(auth.Authenticate(s.config.Authenticator, s.authError))
		}

		r.Group(func(r chi.Router) {
			s.require(r, auth.ActionRead)
			r.Get("/services", s.listServices)
			r.Get("/services/unhealthy", s.listUnhealthy)
			r.Get("/services/{name}", s.getService)
			r.Get("/services/{name}/trends", s.getTrends)
			r.Get("/summary", s.getSummary)
			r.Get("/incidents", s.listIncidents)
			r.Get("/stats", s.getStats)
			r.Get("/catalog", s.getCatalog)
			r.Get("/breakers", s.listBreakers)
		})

		r.Group(func(r chi.Router) {
			s.require(r, auth.ActionWrite)
			r.Post("/services", s.registerService)
			r.Post("/services/{name}/check", s.checkService)
			r.Post("/services/{name}/recover", s.recoverService)
		})
	})
	return r
}

func (s *Server) require(r chi.Router, action string) {
	if s.config.Authenticator != nil {
		r.Use(auth.Authorize(s.config.Authorizer, action, s.authError))
	}
}

func (s *Server) authError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.config.Logger.Warn(r.Context(), "request rejected",
		observe.Field{Key: "path", Value: r.URL.Path},
		observe.Field{Key: "status", Value: status},
		observe.Err(err),
	)
	writeError(w, status, err)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.config.Logger.Debug(r.Context(), "request",
			observe.Field{Key: "method", Value: r.Method},
			observe.Field{Key: "path", Value: r.URL.Path},
			observe.Field{Key: "status", Value: ww.Status()},
			observe.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
			observe.Field{Key: "request_id", Value: middleware.GetReqID(r.Context())},
			observe.Field{Key: "principal", Value: auth.PrincipalFromContext(r.Context())},
		)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		s.config.Logger.Info(ctx, "api listening", observe.Field{Key: "addr", Value: addr})
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

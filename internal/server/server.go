package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/examvm/internal/gateway"
	"github.com/me/examvm/pkg/model"
)

// Store is the read side of the persistence layer the API reports on.
type Store interface {
	GetExam(ctx context.Context, id int64) (*model.Exam, error)
	ListExams(ctx context.Context) ([]*model.Exam, error)
	ListVMs(ctx context.Context, state model.VMState) ([]*model.VM, error)
}

// GatewayStats reports the simulated gateway's queue and running set sizes.
type GatewayStats interface {
	Stats() gateway.Stats
}

// Server is the read-only examvm status API.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	startTime time.Time
	now       func() time.Time

	store             Store
	gateway           GatewayStats // optional
	rateLimit         int
	provisioningDelay time.Duration
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithGateway reports gateway queue sizes on /health.
func WithGateway(gw GatewayStats) Option {
	return func(s *Server) {
		s.gateway = gw
	}
}

// WithRateLimit reports the configured calls per window on /health.
func WithRateLimit(n int) Option {
	return func(s *Server) {
		s.rateLimit = n
	}
}

// WithClock overrides time.Now for schedule evaluation.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New creates a new Server with all routes registered. provisioningDelay is
// the per-VM time used to compute the creation schedule.
func New(st Store, provisioningDelay time.Duration, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:            chi.NewRouter(),
		logger:            logger.With("component", "server"),
		startTime:         time.Now(),
		now:               time.Now,
		store:             st,
		provisioningDelay: provisioningDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return ctx.Err()
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)
		r.Get("/exams", s.handleListExams)
		r.Get("/exams/{id}", s.handleGetExam)
		r.Get("/schedule", s.handleSchedule)
		r.Get("/vms", s.handleListVMs)
	})
}

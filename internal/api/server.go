// Package api is the configuration service: an HTTP interface to read and
// replace the alarm schedule and the activation flag while the daemon runs.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunrised/internal/ledger"
	"github.com/dokzlo13/sunrised/internal/state"
)

// maxRequestBodySize caps JSON request bodies.
const maxRequestBodySize = 64 << 10

// History provides recent controller events.
type History interface {
	Recent(limit int) ([]*ledger.Entry, error)
	GetByRun(runID string, limit int) ([]*ledger.Entry, error)
}

// Runtime is the shared state read and replaced by the API.
type Runtime interface {
	Schedule() (state.Schedule, error)
	SetSchedule(s state.Schedule) error
	Activated() (bool, error)
	SetActivated(v bool) error
}

// Server serves the configuration API.
type Server struct {
	addr       string
	runtime    Runtime
	history    History
	ready      func() bool
	httpServer *http.Server
}

// NewServer creates a new server. history may be nil when the ledger is
// disabled; ready reports whether the fade supervisor is running.
func NewServer(addr string, runtime Runtime, history History, ready func() bool) *Server {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Server{
		addr:    addr,
		runtime: runtime,
		history: history,
		ready:   ready,
	}
}

// Handler builds the HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/alarm", s.handleGetAlarm)
		r.Post("/alarm", s.handleSetAlarm)
		r.Get("/activated", s.handleGetActivated)
		r.Post("/activated", s.handleSetActivated)
		r.Get("/history", s.handleHistory)
	})

	return r
}

// Run starts the server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve serves on an existing listener until the context is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", ln.Addr().String()).Msg("Starting configuration API")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Configuration API shutdown error")
		}
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/olusolaa/connector/internal/checkpoint"
	"github.com/olusolaa/connector/internal/config"
)

const defaultRunTimeout = time.Hour

// Server exposes the admin API: health, sync control and data inspection.
type Server struct {
	cfg         *config.Config
	syncer      SyncRunner
	checkpoints checkpoint.Store
	events      EventReader
	auth        Authenticator
	scheduler   *Scheduler
	logger      *log.Logger
	runTimeout  time.Duration

	httpServer   *http.Server
	shutdownOnce sync.Once
}

// New builds the admin server. events may be nil when no event store is
// configured; the corresponding endpoints then return 503.
func New(cfg *config.Config, runner SyncRunner, checkpoints checkpoint.Store, events EventReader, auth Authenticator, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[server] ", log.LstdFlags)
	}
	if auth == nil {
		auth = noopAuth{}
	}
	if checkpoints == nil {
		checkpoints = checkpoint.NewMemoryStore()
	}

	return &Server{
		cfg:         cfg,
		syncer:      runner,
		checkpoints: checkpoints,
		events:      events,
		auth:        auth,
		scheduler:   NewScheduler(runner, cfg.SyncInterval, logger),
		logger:      logger,
		runTimeout:  defaultRunTimeout,
	}
}

// Scheduler exposes the periodic runner so callers can start it with the
// server lifecycle.
func (s *Server) Scheduler() *Scheduler {
	return s.scheduler
}

// Handler returns the routed and wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/sync", s.handleSyncTrigger)
	mux.HandleFunc("/api/sync/status", s.handleSyncStatus)
	mux.HandleFunc("/api/checkpoints", s.handleCheckpoints)
	mux.HandleFunc("/api/events/recent", s.handleRecentEvents)
	mux.HandleFunc("/api/stats", s.handleStats)

	return s.loggingMiddleware(authMiddleware(s.auth, mux))
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.ServerHost, s.cfg.ServerPort),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ServerReadTimeout,
		WriteTimeout: s.cfg.ServerWriteTimeout,
		IdleTimeout:  s.cfg.ServerIdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Printf("admin API listening at http://%s:%d", s.cfg.ServerHost, s.cfg.ServerPort)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		return err
	}
}

func (s *Server) shutdown() error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Println("shutting down admin API...")

		s.scheduler.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ServerShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
	})
	return shutdownErr
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if r.URL.Path != "/healthz" {
			s.logger.Printf("%s %s", r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
		if r.URL.Path != "/healthz" {
			s.logger.Printf("%s %s completed in %v", r.Method, r.URL.Path, time.Since(start))
		}
	})
}

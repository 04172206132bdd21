// Package server provides HTTP server lifecycle management.
// It runs the HTTP listener next to background workers and shuts both
// down gracefully.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc is a function that shuts down a component gracefully.
type ShutdownFunc func(ctx context.Context) error

// TaskFunc is a long-running background task. It must return when ctx is done.
type TaskFunc func(ctx context.Context) error

// Options configures the HTTP listener.
type Options struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type task struct {
	name string
	fn   TaskFunc
}

// Server wraps http.Server with background tasks and graceful shutdown.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger

	mu            sync.Mutex
	shutdownFuncs []ShutdownFunc
	tasks         []task
	listenAddr    chan string
}

// New creates a new Server instance.
func New(handler http.Handler, opts Options, logger *slog.Logger) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", opts.Port),
			Handler:      handler,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		},
		shutdownTimeout: opts.ShutdownTimeout,
		logger:          logger,
		listenAddr:      make(chan string, 1),
	}
}

// Go registers a background task started by Run. Tasks receive a context
// that is cancelled when shutdown begins, and Run waits for them to return
// before invoking shutdown hooks.
func (s *Server) Go(name string, fn TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task{name: name, fn: fn})
}

// OnShutdown registers a function to be called during graceful shutdown.
// Shutdown functions are called in reverse order (LIFO) after the HTTP
// server and background tasks stop.
func (s *Server) OnShutdown(name string, fn ShutdownFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownFuncs = append(s.shutdownFuncs, func(ctx context.Context) error {
		s.logger.Info("shutting down component", "name", name)
		if err := fn(ctx); err != nil {
			s.logger.Error("component shutdown error", "name", name, "error", err)
			return err
		}
		s.logger.Info("component stopped", "name", name)
		return nil
	})
}

// Run starts the server and blocks until SIGINT/SIGTERM or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listenAddr <- ln.Addr().String()

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	taskCtx, cancelTasks := context.WithCancel(context.Background())
	defer cancelTasks()
	var wg sync.WaitGroup

	s.mu.Lock()
	tasks := append([]task(nil), s.tasks...)
	s.mu.Unlock()

	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			s.logger.Info("task started", "name", t.name)
			if err := t.fn(taskCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("task exited with error", "name", t.name, "error", err)
				return
			}
			s.logger.Info("task stopped", "name", t.name)
		}(t)
	}

	var runErr error
	select {
	case err := <-serverErr:
		runErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	if err := s.gracefulShutdown(cancelTasks, &wg); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// gracefulShutdown stops the listener, then background tasks, then
// registered components.
func (s *Server) gracefulShutdown(cancelTasks context.CancelFunc, wg *sync.WaitGroup) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	// Phase 1: Stop accepting new connections
	s.logger.Info("phase 1: stopping HTTP server", "timeout", s.shutdownTimeout)
	s.httpServer.SetKeepAlivesEnabled(false)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}
	s.logger.Info("HTTP server stopped")

	// Phase 2: Stop background tasks
	cancelTasks()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("phase 2: background tasks stopped")
	case <-ctx.Done():
		s.logger.Warn("phase 2: timed out waiting for background tasks")
	}

	// Phase 3: Shutdown registered components in reverse order
	s.mu.Lock()
	funcs := s.shutdownFuncs
	s.mu.Unlock()
	s.logger.Info("phase 3: stopping registered components", "count", len(funcs))

	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		s.logger.Error("shutdown completed with errors", "error_count", len(errs))
		return errors.Join(errs...)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// Addr returns the configured server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAddr blocks until Run has bound its listener and returns the
// actual address, which differs from Addr when port 0 is used.
func (s *Server) ListenAddr(ctx context.Context) (string, error) {
	select {
	case addr := <-s.listenAddr:
		s.listenAddr <- addr
		return addr, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

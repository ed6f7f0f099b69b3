// Package server wires the HTTP routes and owns the process lifecycle:
// serving, signal handling and ordered shutdown of background components.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// ShutdownFunc stops one component within the deadline carried by ctx.
type ShutdownFunc func(ctx context.Context) error

// Options are the listener port and http.Server timeouts. IdleTimeout
// defaults to twice WriteTimeout.
type Options struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type hook struct {
	name string
	fn   ShutdownFunc
}

// Server is an http.Server plus the components that must stop with it.
type Server struct {
	http   *http.Server
	grace  time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	hooks []hook
}

func New(handler http.Handler, opts Options, logger *slog.Logger) *Server {
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = 2 * opts.WriteTimeout
	}
	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", opts.Port),
			Handler:           handler,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadTimeout,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       idle,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		grace:  opts.ShutdownTimeout,
		logger: logger,
	}
}

// OnShutdown registers fn to run once the HTTP server has drained.
// Components stop in reverse registration order.
func (s *Server) OnShutdown(name string, fn ShutdownFunc) {
	s.mu.Lock()
	s.hooks = append(s.hooks, hook{name: name, fn: fn})
	s.mu.Unlock()
}

// Run listens on the configured port and serves until ctx is cancelled or
// the process receives SIGINT or SIGTERM.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener. It returns the serve error if the
// listener fails, otherwise the joined shutdown errors.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutdown requested", "cause", context.Cause(gctx))
		return s.shutdown()
	})
	return g.Wait()
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()

	var errs []error

	s.http.SetKeepAlivesEnabled(false)
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}

	s.mu.Lock()
	hooks := slices.Clone(s.hooks)
	s.mu.Unlock()
	slices.Reverse(hooks)

	for _, h := range hooks {
		start := time.Now()
		if err := h.fn(ctx); err != nil {
			s.logger.Error("component did not stop cleanly", "component", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		s.logger.Info("component stopped", "component", h.name, "took", time.Since(start))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.Info("shutdown complete")
	return nil
}

// Addr is the configured listen address, e.g. ":8080".
func (s *Server) Addr() string {
	return s.http.Addr
}

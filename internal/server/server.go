package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/vibesql/vibelite/internal/config"
	"github.com/vibesql/vibelite/internal/query"
)

type Server struct {
	cfg        config.ServerConfig
	httpServer *http.Server
	listener   net.Listener
	handler    *Handler
	ready      atomic.Bool
	log        zerolog.Logger
}

// NewServer wires a Handler for executor using cfg. Nothing listens until
// Start is called.
func NewServer(cfg *config.Config, executor query.QueryExecutor, log zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg.Server,
		handler: NewHandler(executor, cfg.Database.Path, cfg.Limits, log),
		log:     log,
	}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()
	s.handler.RegisterRoutes(mux)

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", addr, err)
	}
	s.listener = listener

	limitListener := newLimitedListener(listener, s.cfg.MaxConnections)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	s.ready.Store(true)
	s.log.Info().
		Str("addr", listener.Addr().String()).
		Int("max_connections", s.cfg.MaxConnections).
		Msg("HTTP server listening")

	go func() {
		if err := s.httpServer.Serve(limitListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.log.Info().Msg("shutting down HTTP server gracefully")
	s.ready.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("HTTP server shutdown error")
		return err
	}

	s.log.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) IsReady() bool {
	return s.ready.Load()
}

func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
}

// WaitForShutdown blocks until SIGINT or SIGTERM (or ctx is done) and then
// stops the server.
func (s *Server) WaitForShutdown(ctx context.Context) error {
	if !s.IsReady() {
		s.log.Warn().Msg("WaitForShutdown called but server not started")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	s.log.Info().Msg("shutdown requested")

	return s.Stop()
}

// limitedListener blocks Accept while max connections are open.
type limitedListener struct {
	net.Listener
	semaphore chan struct{}
}

func newLimitedListener(l net.Listener, maxConnections int) *limitedListener {
	if maxConnections < 1 {
		maxConnections = 1
	}
	return &limitedListener{
		Listener:  l,
		semaphore: make(chan struct{}, maxConnections),
	}
}

func (l *limitedListener) Accept() (net.Conn, error) {
	l.semaphore <- struct{}{}

	conn, err := l.Listener.Accept()
	if err != nil {
		<-l.semaphore
		return nil, err
	}

	return &limitedConn{
		Conn:      conn,
		semaphore: l.semaphore,
	}, nil
}

type limitedConn struct {
	net.Conn
	semaphore chan struct{}
	once      sync.Once
}

// Close releases the connection's slot once; later calls are no-ops.
func (c *limitedConn) Close() (err error) {
	c.once.Do(func() {
		err = c.Conn.Close()
		<-c.semaphore
	})
	return err
}

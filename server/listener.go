package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/codetesla51/raw-https/logging"
)

// ErrServerClosed is returned by Serve after Shutdown or Close.
var ErrServerClosed = errors.New("server: closed")

// Server accepts TCP connections, performs the TLS handshake and serves one
// request per connection. Each connection runs on its own goroutine so a
// slow peer never holds up the accept loop.
type Server struct {
	config  *Config
	router  *Router
	log     *logging.Logger
	tls     *tls.Config
	workers *workers

	// connCtx outlives the accept loop; only Close cancels it.
	connCtx   context.Context
	killConns context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	active   map[net.Conn]struct{}
	conns    sync.WaitGroup
}

// NewServer loads the certificate chain and key named in config.
func NewServer(config *Config, router *Router, log *logging.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	tlsConfig, err := buildTLSConfig(config)
	if err != nil {
		return nil, err
	}
	log.Infof("HTTPS Server initialized.")
	connCtx, killConns := context.WithCancel(context.Background())
	return &Server{
		config:    config,
		router:    router,
		log:       log,
		tls:       tlsConfig,
		workers:   newWorkers(config.HandlerWorkers),
		connCtx:   connCtx,
		killConns: killConns,
		active:    make(map[net.Conn]struct{}),
	}, nil
}

func buildTLSConfig(config *Config) (*tls.Config, error) {
	if config.TLSConfig != nil {
		c := config.TLSConfig.Clone()
		if c.MinVersion < tls.VersionTLS12 {
			c.MinVersion = tls.VersionTLS12
		}
		return c, nil
	}
	cert, err := tls.LoadX509KeyPair(config.CertFile, config.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ListenAndServe binds config.Addr and serves until ctx is done or the
// server is shut down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{Control: listenControl(s.config)}
	ln, err := lc.Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on ln. It always returns a non-nil error,
// ErrServerClosed after a shutdown. Cancelling ctx stops accepting but
// leaves accepted connections running; use Shutdown or Close for those.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		s.closeListener()
	}()

	s.log.Infof("Listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				s.log.Infof("Server stopped.")
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.log.Errorf("Accept failed: %v", err)
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(5 * time.Millisecond)
			}
			continue
		}

		if !s.track(conn) {
			conn.Close()
			continue
		}
		go s.serveConn(conn)
	}
}

// track registers conn as in flight. It refuses once the server is
// closed, so conns.Add never races the wait in Shutdown.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.active[conn] = struct{}{}
	s.conns.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.active, conn)
	s.mu.Unlock()
	s.conns.Done()
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.untrack(conn)

	ctx := s.connCtx
	tlsConn := tls.Server(conn, s.tls)
	hctx := ctx
	if s.config.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, s.config.HandshakeTimeout)
		defer cancel()
	}
	if err := tlsConn.HandshakeContext(hctx); err != nil {
		s.log.Errorf("Handshake failed: %v", err)
		conn.Close()
		return
	}
	s.log.Infof("Accepted a new connection from %s", conn.RemoteAddr())

	newSession(tlsConn, s.router, s.workers, s.config, s.log).Serve(ctx)
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) closeListener() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
}

// Close stops the accept loop, releases the port and drops every
// connection still in progress.
func (s *Server) Close() {
	s.closeListener()
	s.killConns()

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.active {
		conn.Close()
	}
}

// Shutdown stops accepting and waits for in-flight connections to finish,
// including requests still queued for a handler worker. If ctx expires
// first the remaining connections are closed and ctx's error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeListener()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.Close()
		return ctx.Err()
	}
}

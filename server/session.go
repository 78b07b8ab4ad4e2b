package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/codetesla51/raw-https/logging"
)

// closeWriter is implemented by *tls.Conn, whose CloseWrite sends
// close_notify.
type closeWriter interface {
	CloseWrite() error
}

// Session serves exactly one request on an accepted, handshaken stream and
// then shuts the stream down.
type Session struct {
	conn    net.Conn
	router  *Router
	workers *workers
	config  *Config
	log     *logging.Logger
}

func newSession(conn net.Conn, router *Router, workers *workers, config *Config, log *logging.Logger) *Session {
	return &Session{
		conn:    conn,
		router:  router,
		workers: workers,
		config:  config,
		log:     log,
	}
}

// Serve frames one request, dispatches it and writes the response. Failures
// are logged and never returned; the connection is closed either way.
func (s *Session) Serve(ctx context.Context) {
	defer s.shutdown()

	framer := NewFramer(s.conn, s.config)
	req, err := framer.Next()
	if err != nil {
		s.fail(err)
		return
	}
	if n := len(framer.Buffered()); n > 0 {
		s.log.Debugf("Ignoring %d bytes sent after the request body", n)
	}
	s.log.Debugf("Request: %s %s, Content-Length: %d", req.Method, req.Path, req.ContentLength)

	resp := s.dispatch(ctx, req)
	s.write(resp)

	if s.config.EnableLogging {
		s.log.Request(req.Method, req.Path, statusOf(resp))
	}
}

// fail answers a framing or body error. Errors before the header is complete
// get no response.
func (s *Session) fail(err error) {
	var fe *FramingError
	var te *TransportError
	switch {
	case errors.As(err, &fe):
		s.log.Warnf("Bad request from %s: %v", s.conn.RemoteAddr(), fe.Err)
		s.write(StatusResponse(fe.Status))
	case errors.As(err, &te) && te.Phase == PhaseBody:
		s.log.Errorf("Error reading body: %v", te.Err)
		s.write(StatusResponse(500))
	case errors.Is(err, io.EOF):
		s.log.Debugf("Connection from %s closed before a request was sent", s.conn.RemoteAddr())
	default:
		s.log.Errorf("Error reading request: %v", err)
	}
}

// dispatch looks up the route and runs its handler on a worker.
func (s *Session) dispatch(ctx context.Context, req *Request) []byte {
	handler, ok := s.router.Lookup(req.Path)
	if !ok {
		return StatusResponse(404)
	}

	out := handlerBufferPool.Get().(*bytes.Buffer)
	out.Reset()
	defer func() {
		if out.Cap() <= maxPoolBufferSize {
			handlerBufferPool.Put(out)
		}
	}()

	body := string(req.Body)
	if err := s.workers.run(ctx, func() { handler(body, out) }); err != nil {
		s.log.Errorf("Handler for %s failed: %v", req.Path, err)
		return StatusResponse(500)
	}
	if out.Len() == 0 {
		s.log.Warnf("Handler for %s produced an empty response", req.Path)
	}

	resp := make([]byte, out.Len())
	copy(resp, out.Bytes())
	return resp
}

func (s *Session) write(resp []byte) {
	if s.config.WriteTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	if _, err := s.conn.Write(resp); err != nil {
		s.log.Errorf("Error writing response: %v", err)
	}
}

// shutdown ends the encrypted stream gracefully, then closes the transport.
func (s *Session) shutdown() {
	if cw, ok := s.conn.(closeWriter); ok {
		if err := cw.CloseWrite(); err != nil {
			s.log.Errorf("Error shutting down TLS: %v", err)
		}
	}
	if err := s.conn.Close(); err != nil {
		s.log.Debugf("Error closing connection: %v", err)
	}
}

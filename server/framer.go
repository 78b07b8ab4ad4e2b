package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"time"
)

type framerState int

const (
	stateAwaitingHeaders framerState = iota
	stateHeaderParsed
	stateAwaitingBody
	stateComplete
	stateError
)

func (s framerState) String() string {
	switch s {
	case stateAwaitingHeaders:
		return "AwaitingHeaders"
	case stateHeaderParsed:
		return "HeaderParsed"
	case stateAwaitingBody:
		return "AwaitingBody"
	case stateComplete:
		return "Complete"
	case stateError:
		return "Error"
	}
	return "framerState(" + strconv.Itoa(int(s)) + ")"
}

// Transport phases reported by TransportError.
const (
	PhaseHeader = "header"
	PhaseBody   = "body"
)

var (
	ErrBadContentLength = errors.New("malformed Content-Length")
	ErrBadRequestLine   = errors.New("invalid request line")
	ErrHeaderTooLarge   = errors.New("headers too large")
	ErrBodyTooLarge     = errors.New("body too large")

	errRequestDelivered = errors.New("request already delivered")
)

// FramingError is a malformed request. Status is the response to send.
type FramingError struct {
	Status int
	Err    error
}

func (e *FramingError) Error() string { return fmt.Sprintf("framing: %v (%d)", e.Err, e.Status) }
func (e *FramingError) Unwrap() error { return e.Err }

// TransportError is a read failure on the underlying stream.
type TransportError struct {
	Phase string
	Err   error
}

func (e *TransportError) Error() string { return "reading " + e.Phase + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Request is one framed HTTP request.
type Request struct {
	Method        string
	Path          string
	Proto         string
	Headers       map[string]string
	ContentLength int64
	Body          []byte
}

// Header returns the named header, matched case-insensitively.
func (r *Request) Header(name string) string {
	return r.Headers[textproto.CanonicalMIMEHeaderKey(name)]
}

var headerEnd = []byte("\r\n\r\n")

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Framer assembles one request from a byte stream whose reads may split it
// at any boundary. Bytes read past the declared body are kept and exposed by
// Buffered.
type Framer struct {
	conn   io.Reader
	config *Config

	state   framerState
	buf     []byte
	headEnd int   // index of the first body byte in buf
	pending int64 // body bytes still to read
	req     Request
	rest    []byte
	err     error
}

func NewFramer(conn io.Reader, config *Config) *Framer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Framer{conn: conn, config: config}
}

// Next drives the framer until the request is complete or framing fails.
// The request is returned once; later calls report an error.
func (f *Framer) Next() (*Request, error) {
	if f.state == stateComplete {
		return nil, errRequestDelivered
	}
	for f.state != stateComplete && f.state != stateError {
		f.step()
	}
	if f.state == stateError {
		return nil, f.err
	}
	return &f.req, nil
}

// Buffered returns bytes read beyond the end of the request body.
func (f *Framer) Buffered() []byte {
	return f.rest
}

func (f *Framer) step() {
	switch f.state {
	case stateAwaitingHeaders:
		f.readHeaders()
	case stateHeaderParsed:
		f.checkBody()
	case stateAwaitingBody:
		f.readBody()
	}
}

func (f *Framer) fail(err error) {
	f.state = stateError
	f.err = err
}

func (f *Framer) setDeadline() {
	if f.config.ReadTimeout <= 0 {
		return
	}
	if d, ok := f.conn.(readDeadliner); ok {
		d.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
	}
}

// readHeaders accumulates reads until the blank line ending the header block.
func (f *Framer) readHeaders() {
	maxHeaderSize := f.config.MaxHeaderSize
	searchFrom := 0

	for {
		if maxHeaderSize > 0 && len(f.buf) > maxHeaderSize {
			f.fail(&FramingError{Status: 431, Err: ErrHeaderTooLarge})
			return
		}

		f.setDeadline()
		chunkPtr := chunkBufferPool.Get().(*[]byte)
		n, err := f.conn.Read(*chunkPtr)
		f.buf = append(f.buf, (*chunkPtr)[:n]...)
		chunkBufferPool.Put(chunkPtr)

		if i := bytes.Index(f.buf[searchFrom:], headerEnd); i >= 0 {
			end := searchFrom + i
			if maxHeaderSize > 0 && end > maxHeaderSize {
				f.fail(&FramingError{Status: 431, Err: ErrHeaderTooLarge})
				return
			}
			f.headEnd = end + len(headerEnd)
			f.parseHeader(f.buf[:end])
			return
		}
		if err != nil {
			f.fail(&TransportError{Phase: PhaseHeader, Err: err})
			return
		}
		// The delimiter may straddle two reads.
		if searchFrom = len(f.buf) - len(headerEnd) + 1; searchFrom < 0 {
			searchFrom = 0
		}
	}
}

func (f *Framer) parseHeader(header []byte) {
	lines := bytes.Split(header, []byte("\r\n"))

	method, path, proto, err := parseRequestLineFromBytes(lines[0])
	if err != nil {
		f.fail(&FramingError{Status: 400, Err: err})
		return
	}
	f.req.Method = method
	f.req.Path = path
	f.req.Proto = proto
	f.req.Headers = parseHeadersFromBytes(lines[1:])

	if v, ok := f.req.Headers["Content-Length"]; ok {
		n, err := strconv.ParseUint(v, 10, 63)
		if err != nil {
			f.fail(&FramingError{Status: 400, Err: fmt.Errorf("%w: %q", ErrBadContentLength, v)})
			return
		}
		f.req.ContentLength = int64(n)
	}
	if limit := f.config.MaxBodySize; limit > 0 && f.req.ContentLength > limit {
		f.fail(&FramingError{Status: 413, Err: ErrBodyTooLarge})
		return
	}
	f.state = stateHeaderParsed
}

// checkBody takes the body from bytes already buffered with the header when
// they cover the declared length.
func (f *Framer) checkBody() {
	buffered := f.buf[f.headEnd:]
	length := f.req.ContentLength

	if int64(len(buffered)) >= length {
		f.req.Body = buffered[:length:length]
		f.rest = buffered[length:]
		f.state = stateComplete
		return
	}
	f.pending = length - int64(len(buffered))
	f.state = stateAwaitingBody
}

// readBody reads exactly the missing body bytes.
func (f *Framer) readBody() {
	buffered := f.buf[f.headEnd:]
	body := make([]byte, int64(len(buffered))+f.pending)
	copy(body, buffered)

	f.setDeadline()
	if _, err := io.ReadFull(f.conn, body[len(buffered):]); err != nil {
		f.fail(&TransportError{Phase: PhaseBody, Err: err})
		return
	}
	f.pending = 0
	f.req.Body = body
	f.state = stateComplete
}

// parseRequestLineFromBytes splits "METHOD PATH VERSION". The version is
// returned as sent and not validated.
func parseRequestLineFromBytes(firstLine []byte) (method, path, proto string, err error) {
	parts := bytes.Fields(firstLine)
	if len(parts) < 3 {
		return "", "", "", ErrBadRequestLine
	}
	return string(parts[0]), string(parts[1]), string(parts[2]), nil
}

// parseHeadersFromBytes parses "Key: value" lines into a map keyed by the
// canonical header name. Lines without a colon are ignored.
func parseHeadersFromBytes(headerLines [][]byte) map[string]string {
	headerMap := make(map[string]string, len(headerLines))
	for _, line := range headerLines {
		parts := bytes.SplitN(line, []byte(":"), 2)
		if len(parts) == 2 {
			key := textproto.CanonicalMIMEHeaderKey(string(bytes.TrimSpace(parts[0])))
			if key == "" {
				continue
			}
			headerMap[key] = string(bytes.TrimSpace(parts[1]))
		}
	}
	return headerMap
}

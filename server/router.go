package server

import (
	"bytes"
	"sync"

	"github.com/codetesla51/raw-https/logging"
)

// RouteHandler receives the raw request body and writes a complete literal
// HTTP response, status line included, into out.
type RouteHandler func(body string, out *bytes.Buffer)

// Router maps request paths to handlers. Paths match exactly, query string
// included. Routes are registered before the server starts.
type Router struct {
	mu     sync.RWMutex
	routes map[string]RouteHandler
	log    *logging.Logger
}

// NewRouter creates a new Router instance
func NewRouter(log *logging.Logger) *Router {
	return &Router{
		routes: make(map[string]RouteHandler),
		log:    log,
	}
}

// Register adds a route handler for a path
func (r *Router) Register(path string, handler RouteHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[path] = handler
	r.log.Debugf("Route set for: %s", path)
}

// Lookup returns the handler registered for path.
func (r *Router) Lookup(path string) (RouteHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.routes[path]
	return h, ok
}

// Handle runs the route for path synchronously and returns its response.
// Unknown paths get a bare 404.
func (r *Router) Handle(path, body string) string {
	h, ok := r.Lookup(path)
	if !ok {
		return string(StatusResponse(404))
	}
	var out bytes.Buffer
	h(body, &out)
	return out.String()
}

package bind

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// Connection is the transport seam consumed from the routing layer. The
// router matches a path, fills the raw path parameters, and hands the engine
// a Connection; the engine never touches the wire directly.
//
// Body must be idempotent: the underlying stream is read once and the bytes
// are cached for any later access.
type Connection interface {
	// Context carries request-scoped deadlines and cancellation. A client
	// disconnect cancels it.
	Context() context.Context

	// PathParams returns the raw string values for the matched route's
	// path parameters, keyed by parameter name.
	PathParams() map[string]string

	// Query returns the parsed query string. Multi-valued keys keep their
	// order of appearance.
	Query() url.Values

	// Headers returns the transport-level headers.
	Headers() http.Header

	// Cookies returns the request cookies keyed by name.
	Cookies() map[string]string

	// Body returns the raw request body bytes, reading the underlying
	// stream at most once.
	Body() ([]byte, error)

	// State returns the application-scoped shared state.
	State() *State
}

// HTTPConnection adapts a *http.Request to the Connection interface. Path
// parameters come from the request's matched pattern (r.PathValue) unless
// overridden with SetPathParams by a custom router.
type HTTPConnection struct {
	req   *http.Request
	state *State

	pathParams map[string]string

	bodyOnce sync.Once
	body     []byte
	bodyErr  error
}

// NewHTTPConnection wraps an incoming request. pathParams holds the raw
// values captured by the router for the matched route; it may be nil when
// the route has no path parameters.
func NewHTTPConnection(r *http.Request, state *State, pathParams map[string]string) *HTTPConnection {
	if state == nil {
		state = NewState()
	}
	return &HTTPConnection{req: r, state: state, pathParams: pathParams}
}

// Context returns the request context.
func (c *HTTPConnection) Context() context.Context { return c.req.Context() }

// Request returns the underlying *http.Request for escape hatches.
func (c *HTTPConnection) Request() *http.Request { return c.req }

// PathParams returns the raw path parameter values.
func (c *HTTPConnection) PathParams() map[string]string {
	if c.pathParams == nil {
		return map[string]string{}
	}
	return c.pathParams
}

// Query returns the parsed query string.
func (c *HTTPConnection) Query() url.Values { return c.req.URL.Query() }

// Headers returns the request headers.
func (c *HTTPConnection) Headers() http.Header { return c.req.Header }

// Cookies returns the request cookies keyed by name. On duplicate names the
// first occurrence wins.
func (c *HTTPConnection) Cookies() map[string]string {
	cookies := make(map[string]string)
	for _, ck := range c.req.Cookies() {
		if _, ok := cookies[ck.Name]; !ok {
			cookies[ck.Name] = ck.Value
		}
	}
	return cookies
}

// Body reads and caches the request body. Subsequent calls return the
// cached bytes.
func (c *HTTPConnection) Body() ([]byte, error) {
	c.bodyOnce.Do(func() {
		if c.req.Body == nil {
			return
		}
		defer c.req.Body.Close()
		c.body, c.bodyErr = io.ReadAll(c.req.Body)
	})
	return c.body, c.bodyErr
}

// State returns the shared application state.
func (c *HTTPConnection) State() *State { return c.state }

// Package bindtest provides a configurable fake connection for testing the
// binding engine without a transport.
package bindtest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bjaus/bind"
)

// Conn is an in-memory bind.Connection. The zero value is usable; the
// With* methods return the receiver for chaining.
type Conn struct {
	ctx     context.Context
	path    map[string]string
	query   url.Values
	headers http.Header
	cookies map[string]string
	body    []byte
	bodyErr error
	state   *bind.State
}

// NewConn creates a fake connection with an empty request surface.
func NewConn() *Conn {
	return &Conn{
		ctx:     context.Background(),
		path:    make(map[string]string),
		query:   make(url.Values),
		headers: make(http.Header),
		cookies: make(map[string]string),
		state:   bind.NewState(),
	}
}

// WithContext sets the request context.
func (c *Conn) WithContext(ctx context.Context) *Conn {
	c.ctx = ctx
	return c
}

// WithPathParam sets a raw path parameter value.
func (c *Conn) WithPathParam(name, value string) *Conn {
	c.path[name] = value
	return c
}

// WithQuery appends query values under a key.
func (c *Conn) WithQuery(key string, values ...string) *Conn {
	c.query[key] = append(c.query[key], values...)
	return c
}

// WithHeader sets a header value.
func (c *Conn) WithHeader(name, value string) *Conn {
	c.headers.Set(name, value)
	return c
}

// WithCookie sets a cookie value.
func (c *Conn) WithCookie(name, value string) *Conn {
	c.cookies[name] = value
	return c
}

// WithBody sets the raw request body.
func (c *Conn) WithBody(body []byte) *Conn {
	c.body = body
	return c
}

// WithBodyError makes Body fail, simulating a broken transport read.
func (c *Conn) WithBodyError(err error) *Conn {
	c.bodyErr = err
	return c
}

// WithState replaces the shared state.
func (c *Conn) WithState(s *bind.State) *Conn {
	c.state = s
	return c
}

// Context implements bind.Connection.
func (c *Conn) Context() context.Context { return c.ctx }

// PathParams implements bind.Connection.
func (c *Conn) PathParams() map[string]string { return c.path }

// Query implements bind.Connection.
func (c *Conn) Query() url.Values { return c.query }

// Headers implements bind.Connection.
func (c *Conn) Headers() http.Header { return c.headers }

// Cookies implements bind.Connection.
func (c *Conn) Cookies() map[string]string { return c.cookies }

// Body implements bind.Connection.
func (c *Conn) Body() ([]byte, error) {
	if c.bodyErr != nil {
		return nil, c.bodyErr
	}
	return c.body, nil
}

// State implements bind.Connection.
func (c *Conn) State() *bind.State { return c.state }

package bind

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
)

// HandlerFunc is the invocation target of a registration. It receives the
// validated, fully typed argument set produced by the binder.
type HandlerFunc func(ctx context.Context, args Args) (any, error)

// HandlerKind is the closed set of handler variants. Each kind carries its
// own structural validation rules, dispatched by switch rather than
// inheritance.
type HandlerKind int

const (
	// KindHTTP handles a routed HTTP request.
	KindHTTP HandlerKind = iota
	// KindSocket handles an upgraded socket connection and must declare the
	// reserved "socket" parameter.
	KindSocket
	// KindGeneric handles a raw connection and must declare the reserved
	// "connection" parameter.
	KindGeneric
)

// String returns the kind name used in errors and introspection.
func (k HandlerKind) String() string {
	switch k {
	case KindSocket:
		return "socket"
	case KindGeneric:
		return "generic"
	default:
		return "http"
	}
}

// Handler is the leaf of the ownership tree: a function plus its own
// configuration layer, method, and path template.
type Handler struct {
	layer   *Layer
	kind    HandlerKind
	method  string
	pattern string
	fn      HandlerFunc
}

// capabilities describes what a merged handler configuration actually uses.
// Derived from config at registration, not from a type hierarchy.
type capabilities struct {
	hasGuards             bool
	hasDependencies       bool
	hasResponseDecoration bool
}

// validateKind enforces the structural rules of each handler variant.
func (h *Handler) validateKind() error {
	declared := make(map[string]bool, len(h.layer.declared))
	for _, p := range h.layer.declared {
		declared[p.Name] = true
	}

	switch h.kind {
	case KindHTTP:
		if declared[ReservedSocket] {
			return configErrorf("http handler %s %s cannot declare the reserved %q parameter", h.method, h.pattern, ReservedSocket)
		}
	case KindSocket:
		if !declared[ReservedSocket] {
			return configErrorf("socket handler %s must declare the reserved %q parameter", h.pattern, ReservedSocket)
		}
		if declared[ReservedBody] || declared[ReservedData] {
			return configErrorf("socket handler %s cannot declare body parameters", h.pattern)
		}
	case KindGeneric:
		if !declared[ReservedConnection] {
			return configErrorf("generic handler %s must declare the reserved %q parameter", h.pattern, ReservedConnection)
		}
	}
	return nil
}

// id returns the handler identity used for plan caching. The full pattern
// participates so handlers sharing a function under different owners never
// share a plan.
func (h *Handler) id() string {
	return fmt.Sprintf("%s %s %#x", h.method, h.fullPattern(), reflect.ValueOf(h.fn).Pointer())
}

// fullPattern joins the path fragments of every owning layer with the
// handler's own pattern.
func (h *Handler) fullPattern() string {
	var parts []string
	for _, l := range h.layer.chain() {
		if l.path != "" {
			parts = append(parts, strings.Trim(l.path, "/"))
		}
	}
	if h.pattern != "" {
		parts = append(parts, strings.Trim(h.pattern, "/"))
	}
	return "/" + strings.Join(parts, "/")
}

// newHandler builds the handler leaf layer and registers it with the app.
func newHandler(reg Registrar, kind HandlerKind, method, pattern string, fn HandlerFunc, opts ...Option) (*Registration, error) {
	h := &Handler{
		layer:   newLayer(layerHandler, reg.ownerLayer(), pattern, opts...),
		kind:    kind,
		method:  method,
		pattern: pattern,
		fn:      fn,
	}
	return reg.ownerApp().register(h)
}

// Route registers an HTTP handler for an arbitrary method. Registration
// computes the merged configuration, the dependency batch plan, and the
// parameter extraction plan exactly once; configuration errors abort startup.
func Route(reg Registrar, method, pattern string, fn HandlerFunc, opts ...Option) (*Registration, error) {
	return newHandler(reg, KindHTTP, method, pattern, fn, opts...)
}

// Get registers a GET handler.
func Get(reg Registrar, pattern string, fn HandlerFunc, opts ...Option) (*Registration, error) {
	return Route(reg, http.MethodGet, pattern, fn, opts...)
}

// Post registers a POST handler.
func Post(reg Registrar, pattern string, fn HandlerFunc, opts ...Option) (*Registration, error) {
	return Route(reg, http.MethodPost, pattern, fn, opts...)
}

// Put registers a PUT handler.
func Put(reg Registrar, pattern string, fn HandlerFunc, opts ...Option) (*Registration, error) {
	return Route(reg, http.MethodPut, pattern, fn, opts...)
}

// Patch registers a PATCH handler.
func Patch(reg Registrar, pattern string, fn HandlerFunc, opts ...Option) (*Registration, error) {
	return Route(reg, http.MethodPatch, pattern, fn, opts...)
}

// Delete registers a DELETE handler.
func Delete(reg Registrar, pattern string, fn HandlerFunc, opts ...Option) (*Registration, error) {
	return Route(reg, http.MethodDelete, pattern, fn, opts...)
}

// Socket registers a socket handler. The handler must declare the reserved
// "socket" parameter.
func Socket(reg Registrar, pattern string, fn HandlerFunc, opts ...Option) (*Registration, error) {
	return newHandler(reg, KindSocket, "SOCKET", pattern, fn, opts...)
}

// Generic registers a raw connection handler. The handler must declare the
// reserved "connection" parameter.
func Generic(reg Registrar, pattern string, fn HandlerFunc, opts ...Option) (*Registration, error) {
	return newHandler(reg, KindGeneric, "ANY", pattern, fn, opts...)
}

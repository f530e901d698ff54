package bind

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"sync"
)

// layerKind identifies a node's level in the ownership tree.
type layerKind int

const (
	layerApp layerKind = iota
	layerRouter
	layerController
	layerHandler
)

func (k layerKind) String() string {
	switch k {
	case layerApp:
		return "app"
	case layerRouter:
		return "router"
	case layerController:
		return "controller"
	default:
		return "handler"
	}
}

// setting is a scalar layer value with an explicit "unset" state, distinct
// from an explicitly configured zero value.
type setting[T any] struct {
	value T
	isSet bool
}

func set[T any](v T) setting[T] {
	return setting[T]{value: v, isSet: true}
}

// BeforeHook runs ahead of parameter extraction. A non-nil result
// short-circuits the binder directly past handler invocation.
type BeforeHook func(ctx context.Context, conn Connection) (any, error)

// AfterHook runs after a successful handler invocation and may replace the
// result.
type AfterHook func(ctx context.Context, result any) (any, error)

// ExceptionHandler recovers an error mapped by status code into a response
// value.
type ExceptionHandler func(conn Connection, err error) (any, error)

// DispatchFunc is the per-request dispatch signature wrapped by middleware.
type DispatchFunc func(conn Connection) (any, error)

// Middleware wraps dispatch. Merged middleware executes
// outermost(App) → innermost(Handler).
type Middleware func(next DispatchFunc) DispatchFunc

// Layer is one node of the App → Router → Controller → Handler ownership
// tree. Every field is optional; unset fields defer to less specific layers
// during the merge. Layers are never mutated after construction: the merge
// engine folds over immutable snapshots.
type Layer struct {
	kind   layerKind
	parent *Layer
	path   string

	guards       []Guard
	middleware   []Middleware
	dependencies map[string]*Provider
	exceptions   map[int]ExceptionHandler
	tags         []string
	security     []string
	parameters   map[string]Param
	opts         map[string]any

	requestType  setting[reflect.Type]
	responseType setting[reflect.Type]

	responseHeaders map[string]string
	responseCookies map[string]*http.Cookie
	cacheControl    map[string]string

	before BeforeHook
	after  AfterHook

	// declared holds the ordered handler parameter list; only meaningful on
	// handler layers.
	declared []Param
}

// chain returns the ownership layers from the app root down to this layer.
func (l *Layer) chain() []*Layer {
	var layers []*Layer
	for cur := l; cur != nil; cur = cur.parent {
		layers = append(layers, cur)
	}
	for i, j := 0, len(layers)-1; i < j; i, j = i+1, j-1 {
		layers[i], layers[j] = layers[j], layers[i]
	}
	return layers
}

// Option configures a single ownership layer.
type Option func(*Layer)

// WithGuards appends authorization guards to the layer. Guards from every
// layer run in root→leaf order and are never de-duplicated.
func WithGuards(guards ...Guard) Option {
	return func(l *Layer) {
		l.guards = append(l.guards, guards...)
	}
}

// WithMiddleware appends wrapping middleware to the layer. After the merge,
// app-level middleware is outermost and handler-level innermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(l *Layer) {
		l.middleware = append(l.middleware, mw...)
	}
}

// WithDependency registers a named dependency provider on the layer. A more
// specific layer re-registering the same name overrides it.
func WithDependency(name string, p *Provider) Option {
	return func(l *Layer) {
		if l.dependencies == nil {
			l.dependencies = make(map[string]*Provider)
		}
		l.dependencies[name] = p
	}
}

// WithDependencyFunc is shorthand for WithDependency(name, Provide(fn, opts...)).
func WithDependencyFunc(name string, fn ProviderFunc, opts ...ProviderOption) Option {
	return WithDependency(name, Provide(fn, opts...))
}

// WithExceptionHandler maps an HTTP status class to a recovery handler.
func WithExceptionHandler(status int, h ExceptionHandler) Option {
	return func(l *Layer) {
		if l.exceptions == nil {
			l.exceptions = make(map[int]ExceptionHandler)
		}
		l.exceptions[status] = h
	}
}

// WithTags appends documentation tags. Merged output de-duplicates while
// preserving first-seen order.
func WithTags(tags ...string) Option {
	return func(l *Layer) {
		l.tags = append(l.tags, tags...)
	}
}

// WithSecurity appends security requirements by scheme name.
func WithSecurity(schemes ...string) Option {
	return func(l *Layer) {
		l.security = append(l.security, schemes...)
	}
}

// WithParameter declares a layered parameter: it is extracted and validated
// for every handler beneath this layer unless the handler redeclares the
// same name.
func WithParameter(p Param) Option {
	return func(l *Layer) {
		if l.parameters == nil {
			l.parameters = make(map[string]Param)
		}
		l.parameters[p.Name] = p
	}
}

// WithOpt stores a free-form option visible to guards and middleware through
// the merged registration.
func WithOpt(key string, value any) Option {
	return func(l *Layer) {
		if l.opts == nil {
			l.opts = make(map[string]any)
		}
		l.opts[key] = value
	}
}

// WithRequestType overrides the declared request type. Pass nil for
// "explicitly none", which is distinct from leaving the setting unset.
func WithRequestType(t reflect.Type) Option {
	return func(l *Layer) {
		l.requestType = set(t)
	}
}

// WithResponseType overrides the declared response type. Pass nil for
// "explicitly none".
func WithResponseType(t reflect.Type) Option {
	return func(l *Layer) {
		l.responseType = set(t)
	}
}

// WithResponseHeader adds a response decoration header. More specific layers
// override on name collision.
func WithResponseHeader(name, value string) Option {
	return func(l *Layer) {
		if l.responseHeaders == nil {
			l.responseHeaders = make(map[string]string)
		}
		l.responseHeaders[name] = value
	}
}

// WithResponseCookie adds a response decoration cookie keyed by name.
func WithResponseCookie(c *http.Cookie) Option {
	return func(l *Layer) {
		if l.responseCookies == nil {
			l.responseCookies = make(map[string]*http.Cookie)
		}
		l.responseCookies[c.Name] = c
	}
}

// WithCacheControl adds a cache directive keyed by name.
func WithCacheControl(directive, value string) Option {
	return func(l *Layer) {
		if l.cacheControl == nil {
			l.cacheControl = make(map[string]string)
		}
		l.cacheControl[directive] = value
	}
}

// WithBeforeHook sets the layer's before hook. The most specific configured
// hook wins.
func WithBeforeHook(h BeforeHook) Option {
	return func(l *Layer) {
		l.before = h
	}
}

// WithAfterHook sets the layer's after hook. The most specific configured
// hook wins.
func WithAfterHook(h AfterHook) Option {
	return func(l *Layer) {
		l.after = h
	}
}

// WithParams declares the handler's ordered parameter list. Only meaningful
// on handler layers.
func WithParams(params ...Param) Option {
	return func(l *Layer) {
		l.declared = append(l.declared, params...)
	}
}

func newLayer(kind layerKind, parent *Layer, path string, opts ...Option) *Layer {
	l := &Layer{kind: kind, parent: parent, path: path}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// App is the root of the ownership tree and owns the runtime pieces shared
// by every registration: the logger, the body decoder, the worker pool for
// blocking providers, and the extraction plan cache.
type App struct {
	layer *Layer

	logger      *slog.Logger
	state       *State
	decoder     Decoder
	pool        *workerPool
	strictQuery bool

	mu            sync.Mutex
	planCache     map[string]*extractionPlan
	routeSigs     map[*Layer]map[string]bool
	registrations []*Registration
}

// AppOption configures the App.
type AppOption func(*App)

// WithLogger sets the structured logger used for teardown failure reporting.
func WithLogger(logger *slog.Logger) AppOption {
	return func(a *App) {
		a.logger = logger
	}
}

// WithDecoder sets the request body decoder. Defaults to JSON.
func WithDecoder(dec Decoder) AppOption {
	return func(a *App) {
		a.decoder = dec
	}
}

// WithWorkerPoolSize bounds the number of blocking providers executing
// concurrently across all in-flight requests. Defaults to 8.
func WithWorkerPoolSize(n int) AppOption {
	return func(a *App) {
		if n > 0 {
			a.pool = newWorkerPool(n)
		}
	}
}

// WithStrictQueryCardinality makes a repeated singular query parameter a
// validation failure instead of collapsing to the first value.
func WithStrictQueryCardinality() AppOption {
	return func(a *App) {
		a.strictQuery = true
	}
}

// WithState sets the shared application state handed to connections.
func WithState(s *State) AppOption {
	return func(a *App) {
		a.state = s
	}
}

// WithDefaults applies layer configuration at the app root: guards,
// dependencies, tags and every other layer setting configured here apply to
// all handlers unless a more specific layer overrides them.
func WithDefaults(opts ...Option) AppOption {
	return func(a *App) {
		for _, opt := range opts {
			opt(a.layer)
		}
	}
}

// NewApp creates the application root layer.
func NewApp(opts ...AppOption) *App {
	a := &App{
		layer:     newLayer(layerApp, nil, ""),
		logger:    slog.Default(),
		state:     NewState(),
		decoder:   jsonDecoder{},
		pool:      newWorkerPool(defaultWorkerPoolSize),
		planCache: make(map[string]*extractionPlan),
		routeSigs: make(map[*Layer]map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the application's shared state.
func (a *App) State() *State { return a.state }

// Registrations returns every handler registered so far, for the
// documentation layer. The slice is a copy; registrations themselves are
// immutable.
func (a *App) Registrations() []*Registration {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Registration, len(a.registrations))
	copy(out, a.registrations)
	return out
}

// Router creates a nested router layer.
func (a *App) Router(path string, opts ...Option) *Router {
	return &Router{app: a, layer: newLayer(layerRouter, a.layer, path, opts...)}
}

// Router groups handlers under a shared path prefix and configuration.
// Routers may nest.
type Router struct {
	app   *App
	layer *Layer
}

// Router creates a nested router layer.
func (r *Router) Router(path string, opts ...Option) *Router {
	return &Router{app: r.app, layer: newLayer(layerRouter, r.layer, path, opts...)}
}

// Controller creates a controller layer under the router.
func (r *Router) Controller(path string, opts ...Option) *Controller {
	return &Controller{app: r.app, layer: newLayer(layerController, r.layer, path, opts...)}
}

// Controller groups related handlers under shared configuration. Duplicate
// method+path signatures within one controller are rejected at registration.
type Controller struct {
	app   *App
	layer *Layer
}

// Controller creates a controller layer directly under the app.
func (a *App) Controller(path string, opts ...Option) *Controller {
	return &Controller{app: a, layer: newLayer(layerController, a.layer, path, opts...)}
}

// Registrar is the attachment point accepted by the handler registration
// functions. *App, *Router, and *Controller implement it.
type Registrar interface {
	ownerApp() *App
	ownerLayer() *Layer
}

func (a *App) ownerApp() *App            { return a }
func (a *App) ownerLayer() *Layer        { return a.layer }
func (r *Router) ownerApp() *App         { return r.app }
func (r *Router) ownerLayer() *Layer     { return r.layer }
func (c *Controller) ownerApp() *App     { return c.app }
func (c *Controller) ownerLayer() *Layer { return c.layer }

package bind

import (
	"log/slog"
	"net/http"
	"reflect"
)

// mergedConfig is the effective configuration for one handler, computed by a
// pure fold over the root→leaf ownership chain. The fold never mutates a
// layer, so merging the same chain twice yields identical output.
type mergedConfig struct {
	guards     []Guard
	middleware []Middleware
	tags       []string
	security   []string

	dependencies map[string]*Provider
	exceptions   map[int]ExceptionHandler
	opts         map[string]any
	parameters   map[string]Param

	responseHeaders map[string]string
	responseCookies map[string]*http.Cookie
	cacheControl    map[string]string

	requestType  reflect.Type
	responseType reflect.Type

	before BeforeHook
	after  AfterHook
}

// mergeLayers folds the ownership chain into an effective configuration.
//
// Field kinds merge differently: additive lists concatenate root→leaf
// (guards keep duplicates, tags and security de-duplicate preserving
// first-seen order); middleware accumulates leaf→root and is reversed once
// so execution order is outermost(App)→innermost(Handler); maps let more
// specific layers override on key collision; scalar overrides take the most
// specific set value.
//
// The only failure is an ambiguous dependency binding: the same provider
// identity reachable under two different keys.
func mergeLayers(chain []*Layer) (*mergedConfig, error) {
	m := &mergedConfig{
		dependencies:    make(map[string]*Provider),
		exceptions:      make(map[int]ExceptionHandler),
		opts:            make(map[string]any),
		parameters:      make(map[string]Param),
		responseHeaders: make(map[string]string),
		responseCookies: make(map[string]*http.Cookie),
		cacheControl:    make(map[string]string),
	}

	for _, layer := range chain {
		m.guards = append(m.guards, layer.guards...)
		m.tags = appendUnique(m.tags, layer.tags)
		m.security = appendUnique(m.security, layer.security)

		for _, key := range sortedKeys(layer.dependencies) {
			provider := layer.dependencies[key]
			if err := validateUniqueProvider(m.dependencies, key, provider); err != nil {
				return nil, err
			}
			m.dependencies[key] = provider
		}
		for status, h := range layer.exceptions {
			m.exceptions[status] = h
		}
		for k, v := range layer.opts {
			m.opts[k] = v
		}
		for k, v := range layer.parameters {
			m.parameters[k] = v
		}
		for k, v := range layer.responseHeaders {
			m.responseHeaders[k] = v
		}
		for k, v := range layer.responseCookies {
			m.responseCookies[k] = v
		}
		for k, v := range layer.cacheControl {
			m.cacheControl[k] = v
		}
	}

	// Middleware accumulates leaf→root, reversed once per merge.
	var mw []Middleware
	for i := len(chain) - 1; i >= 0; i-- {
		for j := len(chain[i].middleware) - 1; j >= 0; j-- {
			mw = append(mw, chain[i].middleware[j])
		}
	}
	for i, j := 0, len(mw)-1; i < j; i, j = i+1, j-1 {
		mw[i], mw[j] = mw[j], mw[i]
	}
	m.middleware = mw

	// Scalar overrides: most specific set value wins.
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].requestType.isSet {
			m.requestType = chain[i].requestType.value
			break
		}
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].responseType.isSet {
			m.responseType = chain[i].responseType.value
			break
		}
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].before != nil {
			m.before = chain[i].before
			break
		}
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].after != nil {
			m.after = chain[i].after
			break
		}
	}

	return m, nil
}

// validateUniqueProvider rejects the same provider identity bound under two
// different keys. Re-binding the same key is an override and always allowed;
// provider override-by-key checks identity only, not signature compatibility.
func validateUniqueProvider(deps map[string]*Provider, key string, p *Provider) error {
	for existingKey, existing := range deps {
		if existingKey == key {
			continue
		}
		if existing.identity() == p.identity() {
			return configErrorf(
				"provider for key %q is already defined under the different key %q; to override a provider use the same key",
				key, existingKey,
			)
		}
	}
	return nil
}

// appendUnique concatenates src onto dst, dropping values already present
// while preserving first-seen order.
func appendUnique(dst, src []string) []string {
	for _, s := range src {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}

// Registration is the immutable merged snapshot for one handler, computed
// once at registration time and shared read-only by every concurrent
// request.
type Registration struct {
	handler *Handler
	merged  *mergedConfig

	method     string
	pattern    string
	pathParams []pathParamDef

	plan    *extractionPlan
	batches [][]*dependencyNode

	caps capabilities

	logger      *slog.Logger
	decoder     Decoder
	pool        *workerPool
	strictQuery bool
}

// register merges the handler's ownership chain, validates the
// configuration, and computes the dependency batch plan and extraction plan.
// All configuration errors surface here, never per request.
func (a *App) register(h *Handler) (*Registration, error) {
	if err := h.validateKind(); err != nil {
		return nil, err
	}

	merged, err := mergeLayers(h.layer.chain())
	if err != nil {
		return nil, err
	}

	pattern := h.fullPattern()
	pathParams, err := parsePathTemplate(pattern)
	if err != nil {
		return nil, err
	}

	if err := a.claimRouteSignature(h, pattern); err != nil {
		return nil, err
	}

	for _, key := range sortedKeys(merged.dependencies) {
		if err := merged.dependencies[key].finalize(merged.dependencies, pathParams); err != nil {
			return nil, err
		}
	}

	plan, err := a.extractionPlanFor(h, merged, pathParams)
	if err != nil {
		return nil, err
	}

	nodes, err := buildDependencyGraph(plan.dependencyKeys, merged.dependencies)
	if err != nil {
		return nil, err
	}
	batches := createBatches(nodes)

	reg := &Registration{
		handler:    h,
		merged:     merged,
		method:     h.method,
		pattern:    pattern,
		pathParams: pathParams,
		plan:       plan,
		batches:    batches,
		caps: capabilities{
			hasGuards:       len(merged.guards) > 0,
			hasDependencies: len(nodes) > 0,
			hasResponseDecoration: len(merged.responseHeaders) > 0 ||
				len(merged.responseCookies) > 0 || len(merged.cacheControl) > 0,
		},
		logger:      a.logger,
		decoder:     a.decoder,
		pool:        a.pool,
		strictQuery: a.strictQuery,
	}

	a.mu.Lock()
	a.registrations = append(a.registrations, reg)
	a.mu.Unlock()

	return reg, nil
}

// claimRouteSignature rejects two handlers under the same owner sharing an
// identical method+path signature.
func (a *App) claimRouteSignature(h *Handler, pattern string) error {
	owner := h.layer.parent
	sig := h.method + " " + pattern

	a.mu.Lock()
	defer a.mu.Unlock()

	seen := a.routeSigs[owner]
	if seen == nil {
		seen = make(map[string]bool)
		a.routeSigs[owner] = seen
	}
	if seen[sig] {
		return configErrorf("duplicate registration: %s is already registered on this %s", sig, owner.kind)
	}
	seen[sig] = true
	return nil
}

// extractionPlanFor returns the static parameter plan for the handler and
// path parameter set, reusing a cached plan when the same pair registers
// again.
func (a *App) extractionPlanFor(h *Handler, merged *mergedConfig, pathParams []pathParamDef) (*extractionPlan, error) {
	key := planCacheKey(h.id(), pathParams)

	a.mu.Lock()
	if plan, ok := a.planCache[key]; ok {
		a.mu.Unlock()
		return plan, nil
	}
	a.mu.Unlock()

	plan, err := buildExtractionPlan(h.layer.declared, merged.parameters, merged.dependencies, pathParams)
	if err != nil {
		return nil, err
	}

	// Pull every transitive provider's connection parameters into the
	// handler plan so extraction happens once per request.
	seen := make(map[string]bool)
	var walk func(keys []string) error
	walk = func(keys []string) error {
		for _, depKey := range keys {
			if seen[depKey] {
				continue
			}
			seen[depKey] = true
			provider, ok := merged.dependencies[depKey]
			if !ok {
				return configErrorf("dependency %q is not provided by any layer", depKey)
			}
			plan.merge(planConnectionParams(provider.plan.connection))
			if err := walk(provider.plan.dependencyKeys); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(plan.dependencyKeys); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.planCache[key] = plan
	a.mu.Unlock()
	return plan, nil
}

// Method returns the registered method.
func (reg *Registration) Method() string { return reg.method }

// Pattern returns the full path template.
func (reg *Registration) Pattern() string { return reg.pattern }

// Kind returns the handler variant.
func (reg *Registration) Kind() HandlerKind { return reg.handler.kind }

// Tags returns the merged, de-duplicated tags.
func (reg *Registration) Tags() []string { return reg.merged.tags }

// Security returns the merged security requirements.
func (reg *Registration) Security() []string { return reg.merged.security }

// Opt returns a merged free-form option value.
func (reg *Registration) Opt(key string) (any, bool) {
	v, ok := reg.merged.opts[key]
	return v, ok
}

// RequestType returns the effective request type override, or nil.
func (reg *Registration) RequestType() reflect.Type { return reg.merged.requestType }

// ResponseType returns the effective response type override, or nil.
func (reg *Registration) ResponseType() reflect.Type { return reg.merged.responseType }

// ResponseHeaders returns the merged response decoration headers.
func (reg *Registration) ResponseHeaders() map[string]string { return reg.merged.responseHeaders }

// ResponseCookies returns the merged response decoration cookies.
func (reg *Registration) ResponseCookies() map[string]*http.Cookie { return reg.merged.responseCookies }

// CacheControl returns the merged cache directives.
func (reg *Registration) CacheControl() map[string]string { return reg.merged.cacheControl }

// Middleware returns the merged middleware in execution order,
// outermost(App) first.
func (reg *Registration) Middleware() []Middleware { return reg.merged.middleware }

// Guards returns the merged guards in root→leaf order.
func (reg *Registration) Guards() []Guard { return reg.merged.guards }

// ExceptionHandlerFor returns the merged exception handler mapped to the
// error's status code, if any.
func (reg *Registration) ExceptionHandlerFor(err error) (ExceptionHandler, bool) {
	h, ok := reg.merged.exceptions[ErrorStatus(err)]
	return h, ok
}

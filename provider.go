package bind

import (
	"context"
	"reflect"
	"sync"
)

// Args is the accumulated, string-keyed argument set passed to providers and
// handlers. Values are fully typed: path parameters arrive parsed, body
// fragments decoded, dependencies resolved.
type Args map[string]any

// Arg returns the named argument as T. The second return is false if the
// argument is absent or has a different type.
func Arg[T any](args Args, name string) (T, bool) {
	v, ok := args[name].(T)
	return v, ok
}

// ProviderFunc produces a dependency value. It receives the arguments
// resolved so far, which include every parameter the provider declared.
type ProviderFunc func(ctx context.Context, args Args) (any, error)

// Provider wraps a dependency factory registered under a name on an
// ownership layer. Providers are created at layer-definition time, finalized
// once at handler registration, and shared immutably across all requests
// afterwards.
//
// Provider identity is the underlying function pointer: registering the same
// function under the same key at two layers is an override, while the same
// function reachable under two different keys is an ambiguous binding and a
// registration-time error.
type Provider struct {
	fn       ProviderFunc
	blocking bool
	params   []Param

	finalizeOnce sync.Once
	finalizeErr  error
	plan         *providerPlan
}

// providerPlan is the finalized view of a provider: its declared parameter
// names split into sub-dependency names and connection-sourced params, plus
// its own validation model. Built exactly once.
type providerPlan struct {
	dependencyKeys []string
	connection     []boundParam
	validator      *signatureModel
}

// ProviderOption configures a Provider at construction time.
type ProviderOption func(*Provider)

// Blocking marks the provider as blocking: at runtime it is offloaded to the
// application's bounded worker pool so it cannot stall concurrent requests.
func Blocking() ProviderOption {
	return func(p *Provider) {
		p.blocking = true
	}
}

// WithProviderParams declares the parameters the provider itself needs:
// sub-dependency names, path/query/header/cookie values, or reserved
// connection attributes. Names matching a dependency key in scope become
// graph edges.
func WithProviderParams(params ...Param) ProviderOption {
	return func(p *Provider) {
		p.params = append(p.params, params...)
	}
}

// Provide wraps a factory function into a Provider.
func Provide(fn ProviderFunc, opts ...ProviderOption) *Provider {
	p := &Provider{fn: fn}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// identity returns the comparable identity of the underlying factory.
func (p *Provider) identity() uintptr {
	return reflect.ValueOf(p.fn).Pointer()
}

// Blocking reports whether the provider must run on the worker pool.
func (p *Provider) Blocking() bool { return p.blocking }

// finalize binds the provider's parameter classification and validation
// model. It runs at most once even when the provider is shared by several
// handlers; the first registration wins and later ones observe the same
// immutable plan. A classification failure is cached so every registration
// reusing the provider reports it instead of observing a nil plan.
func (p *Provider) finalize(deps map[string]*Provider, pathParams []pathParamDef) error {
	p.finalizeOnce.Do(func() {
		plan := &providerPlan{}
		for _, param := range p.params {
			src, err := classifyParam(param, deps, pathParams)
			if err != nil {
				p.finalizeErr = err
				return
			}
			if src == SourceDependency {
				plan.dependencyKeys = append(plan.dependencyKeys, param.Name)
				continue
			}
			bp := boundParam{Param: param, src: src}
			if src == SourcePath && bp.Type == TypeString {
				for _, def := range pathParams {
					if def.name == param.Name {
						bp.Type = def.typ
					}
				}
			}
			plan.connection = append(plan.connection, bp)
		}
		plan.validator = newSignatureModel(p.params)
		p.plan = plan
	})
	return p.finalizeErr
}

package bind

import (
	"fmt"
	"sort"
	"strings"
)

// ParamSource identifies where a declared parameter's value comes from.
// SourceAuto lets the plan builder classify the parameter by name: reserved
// connection attribute first, then dependency, then path parameter, then
// query.
type ParamSource int

const (
	SourceAuto ParamSource = iota
	SourceReserved
	SourcePath
	SourceQuery
	SourceHeader
	SourceCookie
	SourceBody
	SourceDependency
)

// String returns the source name used in errors and introspection output.
func (s ParamSource) String() string {
	switch s {
	case SourceReserved:
		return "reserved"
	case SourcePath:
		return "path"
	case SourceQuery:
		return "query"
	case SourceHeader:
		return "header"
	case SourceCookie:
		return "cookie"
	case SourceBody:
		return "body"
	case SourceDependency:
		return "dependency"
	default:
		return "auto"
	}
}

// Reserved parameter names with framework-defined meaning. Declaring one of
// these binds the corresponding connection attribute; using one as a
// dependency key or path parameter is a registration-time error.
const (
	ReservedConnection = "connection"
	ReservedRequest    = "request"
	ReservedSocket     = "socket"
	ReservedState      = "state"
	ReservedHeaders    = "headers"
	ReservedCookies    = "cookies"
	ReservedQuery      = "query"
	ReservedBody       = "body" // raw body bytes
	ReservedData       = "data" // decoded body value
)

// reservedParams is the closed set of reserved parameter names.
var reservedParams = map[string]bool{
	ReservedConnection: true,
	ReservedRequest:    true,
	ReservedSocket:     true,
	ReservedState:      true,
	ReservedHeaders:    true,
	ReservedCookies:    true,
	ReservedQuery:      true,
	ReservedBody:       true,
	ReservedData:       true,
}

// Param declares one handler or provider parameter. Zero values mean: auto
// source classification, string type, optional, no default, singular.
type Param struct {
	// Name is the argument name the resolved value is bound under.
	Name string

	// Source pins the value source. Leave as SourceAuto to classify by name.
	Source ParamSource

	// Type is the declared primitive type for string-sourced values.
	Type ParamType

	// Alias is the wire key (query key, header name, cookie name) when it
	// differs from Name.
	Alias string

	// Required makes a missing value a validation failure instead of
	// falling back to Default.
	Required bool

	// Default is used when the value is absent. It must already have the
	// declared type.
	Default any

	// Plural keeps every occurrence of a multi-valued query parameter in
	// order. Singular parameters collapse to the first occurrence.
	Plural bool

	// Constraints carries the validation metadata for the field.
	Constraints *Constraints
}

// wireKey returns the key used to look the parameter up on the connection.
func (p Param) wireKey() string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.Name
}

// classifyParam resolves a parameter's effective source. Explicit sources
// are kept; auto parameters classify as reserved, dependency, path, then
// query, in that precedence order.
func classifyParam(p Param, deps map[string]*Provider, pathParams []pathParamDef) (ParamSource, error) {
	if p.Source != SourceAuto {
		if reservedParams[p.Name] && p.Source != SourceReserved && p.Source != SourceBody {
			return 0, configErrorf("parameter %q is a reserved name and cannot be bound from %s", p.Name, p.Source)
		}
		return p.Source, nil
	}
	if p.Name == ReservedBody || p.Name == ReservedData {
		return SourceBody, nil
	}
	if reservedParams[p.Name] {
		return SourceReserved, nil
	}
	if _, ok := deps[p.Name]; ok {
		return SourceDependency, nil
	}
	for _, def := range pathParams {
		if def.name == p.Name {
			return SourcePath, nil
		}
	}
	return SourceQuery, nil
}

// boundParam is a parameter with its classification resolved and its path
// type pinned from the route template.
type boundParam struct {
	Param
	src ParamSource
}

// extractionPlan is the static per-(handler, path parameter set) model of
// every declared parameter's source. Built once at registration, cached, and
// strictly read-only across concurrent requests.
type extractionPlan struct {
	reserved []boundParam
	path     []boundParam
	query    []boundParam
	header   []boundParam
	cookie   []boundParam

	dependencyKeys []string
	sequenceQuery  map[string]bool

	validator *signatureModel
}

// buildExtractionPlan classifies every declared parameter for the handler.
// Layered parameters (declared on the app, router, or controller) are merged
// in: a handler declaration of the same name wins, layered-only parameters
// are still extracted and validated.
func buildExtractionPlan(
	params []Param,
	layered map[string]Param,
	deps map[string]*Provider,
	pathParams []pathParamDef,
) (*extractionPlan, error) {
	declared := make(map[string]bool, len(params))
	for _, p := range params {
		declared[p.Name] = true
	}

	merged := make([]Param, 0, len(params)+len(layered))
	merged = append(merged, params...)
	for _, name := range sortedKeys(layered) {
		if !declared[name] {
			merged = append(merged, layered[name])
		}
	}

	if err := validateParamKeys(merged, deps, pathParams); err != nil {
		return nil, err
	}

	plan := &extractionPlan{sequenceQuery: make(map[string]bool)}

	for _, p := range merged {
		src, err := classifyParam(p, deps, pathParams)
		if err != nil {
			return nil, err
		}
		bp := boundParam{Param: p, src: src}

		switch src {
		case SourceReserved:
			plan.reserved = append(plan.reserved, bp)
		case SourcePath:
			// The template annotation wins unless the declaration pins a type.
			if bp.Type == TypeString {
				for _, def := range pathParams {
					if def.name == p.Name {
						bp.Type = def.typ
					}
				}
			}
			plan.path = append(plan.path, bp)
		case SourceQuery:
			if p.Plural {
				plan.sequenceQuery[p.wireKey()] = true
			}
			plan.query = append(plan.query, bp)
		case SourceHeader:
			plan.header = append(plan.header, bp)
		case SourceCookie:
			plan.cookie = append(plan.cookie, bp)
		case SourceBody:
			plan.reserved = append(plan.reserved, bp)
		case SourceDependency:
			plan.dependencyKeys = append(plan.dependencyKeys, p.Name)
		}
	}

	for _, bp := range plan.reserved {
		if bp.Name == ReservedBody || bp.Name == ReservedData {
			continue
		}
		if bp.src == SourceReserved && !reservedParams[bp.Name] {
			return nil, configErrorf("parameter %q declared as reserved but is not a reserved name", bp.Name)
		}
	}

	plan.validator = newSignatureModel(merged)
	return plan, nil
}

// validateParamKeys rejects ambiguous bindings: the same name reachable as a
// path parameter and a dependency, a dependency and an aliased parameter, or
// a reserved name reused for either.
func validateParamKeys(params []Param, deps map[string]*Provider, pathParams []pathParamDef) error {
	pathNames := make(map[string]bool, len(pathParams))
	for _, def := range pathParams {
		pathNames[def.name] = true
	}

	var clashes []string
	for key := range deps {
		if pathNames[key] {
			clashes = append(clashes, key)
		}
		if reservedParams[key] {
			return configErrorf("reserved name %q cannot be used as a dependency key", key)
		}
	}
	for name := range pathNames {
		if reservedParams[name] {
			return configErrorf("reserved name %q cannot be used as a path parameter", name)
		}
	}
	for _, p := range params {
		if p.Alias == "" {
			continue
		}
		if _, ok := deps[p.Name]; ok && p.Source != SourceDependency && p.Source != SourceAuto {
			clashes = append(clashes, p.Name)
		}
	}
	if len(clashes) > 0 {
		sort.Strings(clashes)
		return configErrorf(
			"ambiguous parameter resolution for keys: %s; use distinct keys for dependencies, path parameters and aliased parameters",
			strings.Join(clashes, ", "),
		)
	}
	return nil
}

// merge folds another plan's connection-sourced parameters into this one.
// Used to pull a provider's path/query/header/cookie needs up into the
// handler's plan so extraction happens once per request.
func (plan *extractionPlan) merge(other *extractionPlan) {
	plan.path = mergeParamSets(plan.path, other.path)
	plan.query = mergeParamSets(plan.query, other.query)
	plan.header = mergeParamSets(plan.header, other.header)
	plan.cookie = mergeParamSets(plan.cookie, other.cookie)
	plan.reserved = mergeParamSets(plan.reserved, other.reserved)
	for name := range other.sequenceQuery {
		plan.sequenceQuery[name] = true
	}
}

// mergeParamSets unions two bound parameter sets by name. On collision the
// existing (handler-level) definition wins, except that a required
// definition always survives: a parameter required anywhere is required.
func mergeParamSets(dst, src []boundParam) []boundParam {
	byName := make(map[string]int, len(dst))
	for i, bp := range dst {
		byName[bp.Name] = i
	}
	for _, bp := range src {
		if i, ok := byName[bp.Name]; ok {
			if bp.Required {
				dst[i].Required = true
			}
			continue
		}
		dst = append(dst, bp)
		byName[bp.Name] = len(dst) - 1
	}
	return dst
}

// planConnectionParams converts a provider plan's connection params into a
// partial extraction plan for merging.
func planConnectionParams(params []boundParam) *extractionPlan {
	sub := &extractionPlan{sequenceQuery: make(map[string]bool)}
	for _, bp := range params {
		switch bp.src {
		case SourcePath:
			sub.path = append(sub.path, bp)
		case SourceQuery:
			if bp.Plural {
				sub.sequenceQuery[bp.wireKey()] = true
			}
			sub.query = append(sub.query, bp)
		case SourceHeader:
			sub.header = append(sub.header, bp)
		case SourceCookie:
			sub.cookie = append(sub.cookie, bp)
		case SourceBody:
			sub.reserved = append(sub.reserved, bp)
		case SourceReserved:
			sub.reserved = append(sub.reserved, bp)
		}
	}
	return sub
}

// planCacheKey identifies a cached plan by handler identity and the sorted
// path parameter name set of the matched route.
func planCacheKey(handlerID string, pathParams []pathParamDef) string {
	names := make([]string, len(pathParams))
	for i, def := range pathParams {
		names[i] = def.name
	}
	sort.Strings(names)
	return fmt.Sprintf("%s|%s", handlerID, strings.Join(names, ","))
}

// sortedKeys returns map keys in stable order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

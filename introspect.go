package bind

import (
	"gopkg.in/yaml.v3"
)

// Introspection is the read-only view of a merged registration exposed to
// the documentation and schema layer. Building or encoding it never triggers
// resolution or any other side effect.
type Introspection struct {
	Method   string   `yaml:"method"`
	Pattern  string   `yaml:"pattern"`
	Kind     string   `yaml:"kind"`
	Tags     []string `yaml:"tags,omitempty"`
	Security []string `yaml:"security,omitempty"`

	Params       []ParamInfo      `yaml:"params,omitempty"`
	Dependencies []DependencyInfo `yaml:"dependencies,omitempty"`

	ResponseHeaders map[string]string `yaml:"response_headers,omitempty"`
	CacheControl    map[string]string `yaml:"cache_control,omitempty"`

	// Capability flags derived from the merged configuration, so a
	// documentation or dispatch layer can tell what a handler actually uses
	// without walking the raw config.
	HasGuards             bool `yaml:"has_guards,omitempty"`
	HasDependencies       bool `yaml:"has_dependencies,omitempty"`
	HasResponseDecoration bool `yaml:"has_response_decoration,omitempty"`
}

// ParamInfo describes one declared parameter: its source classification,
// declared type, and constraint summary.
type ParamInfo struct {
	Name     string `yaml:"name"`
	Source   string `yaml:"source"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required,omitempty"`
	Plural   bool   `yaml:"plural,omitempty"`

	Constraints *ConstraintInfo `yaml:"constraints,omitempty"`
}

// ConstraintInfo is the flattened constraint set for documentation output.
type ConstraintInfo struct {
	Min        *float64 `yaml:"min,omitempty"`
	Max        *float64 `yaml:"max,omitempty"`
	MultipleOf *float64 `yaml:"multiple_of,omitempty"`
	MinLength  *int     `yaml:"min_length,omitempty"`
	MaxLength  *int     `yaml:"max_length,omitempty"`
	Pattern    string   `yaml:"pattern,omitempty"`
	Enum       []string `yaml:"enum,omitempty"`
	MinItems   *int     `yaml:"min_items,omitempty"`
	MaxItems   *int     `yaml:"max_items,omitempty"`
}

// DependencyInfo describes one dependency name in the handler's graph and
// the batch it resolves in.
type DependencyInfo struct {
	Name     string `yaml:"name"`
	Batch    int    `yaml:"batch"`
	Blocking bool   `yaml:"blocking,omitempty"`
}

// Inspect returns the merged, read-only per-handler configuration for
// introspection.
func (reg *Registration) Inspect() Introspection {
	info := Introspection{
		Method:          reg.method,
		Pattern:         reg.pattern,
		Kind:            reg.handler.kind.String(),
		Tags:            reg.merged.tags,
		Security:        reg.merged.security,
		ResponseHeaders: reg.merged.responseHeaders,
		CacheControl:    reg.merged.cacheControl,

		HasGuards:             reg.caps.hasGuards,
		HasDependencies:       reg.caps.hasDependencies,
		HasResponseDecoration: reg.caps.hasResponseDecoration,
	}

	appendParams := func(params []boundParam) {
		for _, bp := range params {
			info.Params = append(info.Params, ParamInfo{
				Name:        bp.Name,
				Source:      bp.src.String(),
				Type:        bp.Type.String(),
				Required:    bp.Required,
				Plural:      bp.Plural,
				Constraints: constraintInfo(bp.Constraints),
			})
		}
	}
	appendParams(reg.plan.path)
	appendParams(reg.plan.query)
	appendParams(reg.plan.header)
	appendParams(reg.plan.cookie)
	appendParams(reg.plan.reserved)

	for i, keys := range batchKeys(reg.batches) {
		for _, key := range keys {
			var blocking bool
			if p, ok := reg.merged.dependencies[key]; ok {
				blocking = p.Blocking()
			}
			info.Dependencies = append(info.Dependencies, DependencyInfo{
				Name:     key,
				Batch:    i,
				Blocking: blocking,
			})
		}
	}
	return info
}

func constraintInfo(c *Constraints) *ConstraintInfo {
	c = c.flatten()
	if c == nil {
		return nil
	}
	return &ConstraintInfo{
		Min:        c.Min,
		Max:        c.Max,
		MultipleOf: c.MultipleOf,
		MinLength:  c.MinLength,
		MaxLength:  c.MaxLength,
		Pattern:    c.Pattern,
		Enum:       c.Enum,
		MinItems:   c.MinItems,
		MaxItems:   c.MaxItems,
	}
}

// YAML renders the introspection view for the external schema generator.
func (i Introspection) YAML() ([]byte, error) {
	return yaml.Marshal(i)
}

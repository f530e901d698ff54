package bind

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Constraints carries layered validation metadata for one field. Numeric
// bounds apply to numeric values, length bounds to strings, item bounds to
// sequences; length and item bounds are mutually exclusive per field because
// a field is either scalar or sequence typed.
//
// A Constraints value may wrap another via Wrapped. Flattening merges
// exactly one extra nesting level beyond the first wrapper and then accepts
// whatever constraint set it finds; deeper nesting is ignored. That shallow
// behavior is pinned by a regression test.
type Constraints struct {
	Min          *float64
	Max          *float64
	ExclusiveMin bool
	ExclusiveMax bool
	MultipleOf   *float64

	MinLength *int
	MaxLength *int
	Pattern   string
	LowerCase bool

	Enum  []string
	Const any

	MinItems *int
	MaxItems *int

	Wrapped *Constraints
}

// flatten merges the wrapped constraint metadata into a single effective
// set. Outer values win over inner ones. Only one extra nesting level beyond
// the first wrapper is inspected.
func (c *Constraints) flatten() *Constraints {
	if c == nil || c.Wrapped == nil {
		return c
	}
	eff := mergeConstraints(c, c.Wrapped)
	if c.Wrapped.Wrapped != nil {
		eff = mergeConstraints(eff, c.Wrapped.Wrapped)
	}
	eff.Wrapped = nil
	return eff
}

// mergeConstraints overlays outer on top of inner: any field set on outer
// wins, unset fields fall through to inner.
func mergeConstraints(outer, inner *Constraints) *Constraints {
	out := *outer
	if out.Min == nil {
		out.Min = inner.Min
	}
	if out.Max == nil {
		out.Max = inner.Max
	}
	if !out.ExclusiveMin {
		out.ExclusiveMin = inner.ExclusiveMin
	}
	if !out.ExclusiveMax {
		out.ExclusiveMax = inner.ExclusiveMax
	}
	if out.MultipleOf == nil {
		out.MultipleOf = inner.MultipleOf
	}
	if out.MinLength == nil {
		out.MinLength = inner.MinLength
	}
	if out.MaxLength == nil {
		out.MaxLength = inner.MaxLength
	}
	if out.Pattern == "" {
		out.Pattern = inner.Pattern
	}
	if !out.LowerCase {
		out.LowerCase = inner.LowerCase
	}
	if out.Enum == nil {
		out.Enum = inner.Enum
	}
	if out.Const == nil {
		out.Const = inner.Const
	}
	if out.MinItems == nil {
		out.MinItems = inner.MinItems
	}
	if out.MaxItems == nil {
		out.MaxItems = inner.MaxItems
	}
	return &out
}

// checkConstraints validates a single typed value against its flattened
// constraint set and appends every violation found.
func checkConstraints(name string, value any, c *Constraints, errs *[]ValidationError) {
	c = c.flatten()
	if c == nil {
		return
	}

	// The declared constant is widened the same way extracted values are, so
	// Const: 5 matches an extracted int64(5).
	if c.Const != nil && value != normalizeForValidation(c.Const) {
		*errs = append(*errs, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("must be the constant value %v", c.Const),
			Value:   value,
		})
	}

	switch v := value.(type) {
	case string:
		checkStringConstraints(name, v, c, errs)
	case int64:
		checkNumericConstraints(name, float64(v), v, c, errs)
	case float64:
		checkNumericConstraints(name, v, v, c, errs)
	case []any:
		checkItemConstraints(name, len(v), c, errs)
	}
}

func checkStringConstraints(name, v string, c *Constraints, errs *[]ValidationError) {
	if c.LowerCase {
		v = strings.ToLower(v)
	}
	if c.MinLength != nil && len(v) < *c.MinLength {
		*errs = append(*errs, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("must be at least %d characters", *c.MinLength),
			Value:   v,
		})
	}
	if c.MaxLength != nil && len(v) > *c.MaxLength {
		*errs = append(*errs, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("must be at most %d characters", *c.MaxLength),
			Value:   v,
		})
	}
	if c.Pattern != "" {
		if matched, err := regexp.MatchString(c.Pattern, v); err == nil && !matched {
			*errs = append(*errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("must match pattern %s", c.Pattern),
				Value:   v,
			})
		}
	}
	if len(c.Enum) > 0 {
		found := false
		for _, a := range c.Enum {
			if a == v {
				found = true
				break
			}
		}
		if !found {
			*errs = append(*errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("must be one of [%s]", strings.Join(c.Enum, ",")),
				Value:   v,
			})
		}
	}
}

func checkNumericConstraints(name string, v float64, orig any, c *Constraints, errs *[]ValidationError) {
	if c.Min != nil {
		if v < *c.Min || (c.ExclusiveMin && v == *c.Min) {
			*errs = append(*errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("must be at least %v", *c.Min),
				Value:   orig,
			})
		}
	}
	if c.Max != nil {
		if v > *c.Max || (c.ExclusiveMax && v == *c.Max) {
			*errs = append(*errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("must be at most %v", *c.Max),
				Value:   orig,
			})
		}
	}
	if c.MultipleOf != nil && *c.MultipleOf != 0 {
		if rem := math.Mod(v, *c.MultipleOf); math.Abs(rem) > 1e-9 {
			*errs = append(*errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("must be a multiple of %v", *c.MultipleOf),
				Value:   orig,
			})
		}
	}
}

func checkItemConstraints(name string, length int, c *Constraints, errs *[]ValidationError) {
	if c.MinItems != nil && length < *c.MinItems {
		*errs = append(*errs, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("must have at least %d items", *c.MinItems),
			Value:   length,
		})
	}
	if c.MaxItems != nil && length > *c.MaxItems {
		*errs = append(*errs, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("must have at most %d items", *c.MaxItems),
			Value:   length,
		})
	}
}

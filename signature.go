package bind

// signatureModel validates the fully extracted and resolved argument set
// against the declared parameter specs. It is built once per handler (and
// once per provider) at registration time and shared read-only afterwards.
type signatureModel struct {
	fields []Param
}

// newSignatureModel keeps only the parameters that carry validation work:
// a constraint set, a required flag, or a declared type that extraction
// cannot enforce on its own (sequence fields).
func newSignatureModel(params []Param) *signatureModel {
	m := &signatureModel{}
	for _, p := range params {
		if p.Constraints == nil && !p.Required {
			continue
		}
		m.fields = append(m.fields, p)
	}
	return m
}

// validate checks every field and collects all failures into one structured
// error. It never fails fast: a response names every failing field.
func (m *signatureModel) validate(args Args) error {
	if m == nil || len(m.fields) == 0 {
		return nil
	}

	var errs []ValidationError
	for _, p := range m.fields {
		v, ok := args[p.Name]
		if !ok {
			if p.Required {
				errs = append(errs, ValidationError{
					Field:   p.Name,
					Message: "required parameter is missing",
				})
			}
			continue
		}
		if p.Constraints != nil {
			checkConstraints(p.Name, normalizeForValidation(v), p.Constraints, &errs)
		}
	}

	if len(errs) > 0 {
		return validationProblem(errs)
	}
	return nil
}

// normalizeForValidation widens extracted numeric kinds so constraint checks
// see a small closed set of types.
func normalizeForValidation(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	case []string:
		out := make([]any, len(n))
		for i, s := range n {
			out[i] = s
		}
		return out
	default:
		return v
	}
}

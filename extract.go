package bind

import (
	"fmt"
)

// extract runs the static plan against a connection and fills args with
// typed values. Parse and presence failures across every parameter are
// collected into a single ProblemDetail; transport and codec failures
// (body read, body decode) abort immediately as server-class errors.
func (plan *extractionPlan) extract(conn Connection, reg *Registration, args Args) error {
	var errs []ValidationError

	for _, bp := range plan.reserved {
		if err := extractReserved(bp, conn, reg, args); err != nil {
			return err
		}
	}

	pathValues := conn.PathParams()
	for _, bp := range plan.path {
		raw, ok := pathValues[bp.wireKey()]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   bp.Name,
				Message: fmt.Sprintf("missing path parameter of type %s", bp.Type),
			})
			continue
		}
		v, err := parseValue(bp.Type, raw)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   bp.Name,
				Message: fmt.Sprintf("must be a valid %s", bp.Type),
				Value:   raw,
			})
			continue
		}
		args[bp.Name] = v
	}

	query := conn.Query()
	for _, bp := range plan.query {
		values := query[bp.wireKey()]
		if len(values) == 0 {
			applyAbsent(bp, args, &errs)
			continue
		}
		if bp.Plural {
			parsed := make([]any, 0, len(values))
			bad := false
			for _, raw := range values {
				v, err := parseValue(bp.Type, raw)
				if err != nil {
					errs = append(errs, ValidationError{
						Field:   bp.Name,
						Message: fmt.Sprintf("must be a valid %s", bp.Type),
						Value:   raw,
					})
					bad = true
					break
				}
				parsed = append(parsed, v)
			}
			if !bad {
				args[bp.Name] = parsed
			}
			continue
		}
		if len(values) > 1 && reg.strictQuery {
			errs = append(errs, ValidationError{
				Field:   bp.Name,
				Message: "must not be given more than once",
				Value:   values,
			})
			continue
		}
		v, err := parseValue(bp.Type, values[0])
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   bp.Name,
				Message: fmt.Sprintf("must be a valid %s", bp.Type),
				Value:   values[0],
			})
			continue
		}
		args[bp.Name] = v
	}

	headers := conn.Headers()
	for _, bp := range plan.header {
		raw := headers.Get(bp.wireKey())
		if raw == "" {
			applyAbsent(bp, args, &errs)
			continue
		}
		v, err := parseValue(bp.Type, raw)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   bp.Name,
				Message: fmt.Sprintf("must be a valid %s", bp.Type),
				Value:   raw,
			})
			continue
		}
		args[bp.Name] = v
	}

	cookies := conn.Cookies()
	for _, bp := range plan.cookie {
		raw, ok := cookies[bp.wireKey()]
		if !ok {
			applyAbsent(bp, args, &errs)
			continue
		}
		v, err := parseValue(bp.Type, raw)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   bp.Name,
				Message: fmt.Sprintf("must be a valid %s", bp.Type),
				Value:   raw,
			})
			continue
		}
		args[bp.Name] = v
	}

	if len(errs) > 0 {
		return validationProblem(errs)
	}
	return nil
}

// extractReserved binds a reserved connection attribute. Body bytes are read
// at most once and the decoded value is computed at most once per request;
// both are cached on the binding path.
func extractReserved(bp boundParam, conn Connection, reg *Registration, args Args) error {
	switch bp.Name {
	case ReservedConnection, ReservedRequest, ReservedSocket:
		args[bp.Name] = conn
	case ReservedState:
		args[bp.Name] = conn.State()
	case ReservedHeaders:
		args[bp.Name] = conn.Headers()
	case ReservedCookies:
		args[bp.Name] = conn.Cookies()
	case ReservedQuery:
		args[bp.Name] = conn.Query()
	case ReservedBody:
		raw, err := conn.Body()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrReadBody, err)
		}
		args[bp.Name] = raw
	case ReservedData:
		raw, err := conn.Body()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrReadBody, err)
		}
		v, err := decodeBody(reg.decoder, raw)
		if err != nil {
			return err
		}
		args[bp.Name] = v
	}
	return nil
}

// applyAbsent handles a missing optional or required value.
func applyAbsent(bp boundParam, args Args, errs *[]ValidationError) {
	if bp.Default != nil {
		args[bp.Name] = bp.Default
		return
	}
	if bp.Required {
		*errs = append(*errs, ValidationError{
			Field:   bp.Name,
			Message: fmt.Sprintf("required %s parameter is missing", bp.src),
		})
	}
}

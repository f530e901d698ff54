package bind

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParamType identifies the declared primitive type of a path, query, header,
// or cookie parameter. The zero value is TypeString.
type ParamType int

const (
	TypeString ParamType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeUUID
	TypeDecimal
	TypeDate     // 2006-01-02
	TypeDateTime // RFC 3339
	TypeTime     // 15:04:05
	TypeDuration // time.ParseDuration syntax
	TypePath     // slash-separated filesystem path, cleaned
)

// paramTypeNames maps the template annotation (e.g. "{id:int}") to its type.
var paramTypeNames = map[string]ParamType{
	"str":      TypeString,
	"string":   TypeString,
	"int":      TypeInt,
	"float":    TypeFloat,
	"bool":     TypeBool,
	"uuid":     TypeUUID,
	"decimal":  TypeDecimal,
	"date":     TypeDate,
	"datetime": TypeDateTime,
	"time":     TypeTime,
	"duration": TypeDuration,
	"path":     TypePath,
}

// String returns the template annotation name for the type.
func (t ParamType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeUUID:
		return "uuid"
	case TypeDecimal:
		return "decimal"
	case TypeDate:
		return "date"
	case TypeDateTime:
		return "datetime"
	case TypeTime:
		return "time"
	case TypeDuration:
		return "duration"
	case TypePath:
		return "path"
	default:
		return "str"
	}
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// parseValue converts a raw string into the declared type. The error message
// is client-facing and names only the offending value, not the parameter;
// callers attach the parameter name and declared type.
func parseValue(t ParamType, raw string) (any, error) {
	switch t {
	case TypeString:
		return raw, nil
	case TypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		return n, nil
	case TypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q", raw)
		}
		return f, nil
	case TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q", raw)
		}
		return b, nil
	case TypeUUID:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q", raw)
		}
		return id, nil
	case TypeDecimal:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid decimal %q", raw)
		}
		return d, nil
	case TypeDate:
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q", raw)
		}
		return d, nil
	case TypeDateTime:
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid datetime %q", raw)
		}
		return ts, nil
	case TypeTime:
		ts, err := time.Parse(timeLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid time %q", raw)
		}
		return ts, nil
	case TypeDuration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q", raw)
		}
		return d, nil
	case TypePath:
		return path.Clean("/" + raw), nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %d", t)
	}
}

// pathParamDef is one "{name}" or "{name:type}" segment of a path template.
type pathParamDef struct {
	name string
	typ  ParamType
}

// parsePathTemplate extracts the typed path parameter definitions from a
// route pattern such as "/items/{item_id:int}/files/{rest:path}".
func parsePathTemplate(pattern string) ([]pathParamDef, error) {
	var defs []pathParamDef
	seen := make(map[string]bool)

	for _, seg := range strings.Split(pattern, "/") {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		inner := seg[1 : len(seg)-1]
		name, annotation, hasType := strings.Cut(inner, ":")
		if name == "" {
			return nil, configErrorf("path template %q has an unnamed parameter", pattern)
		}
		if seen[name] {
			return nil, configErrorf("path template %q declares parameter %q twice", pattern, name)
		}
		seen[name] = true

		typ := TypeString
		if hasType {
			t, ok := paramTypeNames[annotation]
			if !ok {
				return nil, configErrorf("path template %q: unknown type %q for parameter %q", pattern, annotation, name)
			}
			typ = t
		}
		defs = append(defs, pathParamDef{name: name, typ: typ})
	}
	return defs, nil
}

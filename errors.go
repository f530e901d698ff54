package bind

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for body handling and provider failures. Parameter
// extraction failures are client-facing and surface as ValidationError
// collections instead.
var (
	ErrReadBody   = errors.New("read body")
	ErrDecodeBody = errors.New("decode body")
	ErrProvider   = errors.New("provider")
)

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ConfigError is a fatal registration-time configuration error: dependency
// cycles, ambiguous provider bindings, duplicate route signatures, missing
// reserved parameters. Once registration succeeds, the conditions it guards
// against cannot occur at runtime.
type ConfigError struct {
	Detail string
}

// Error returns the configuration problem description.
func (e *ConfigError) Error() string { return e.Detail }

// configErrorf builds a ConfigError with a formatted detail message.
func configErrorf(format string, args ...any) error {
	return &ConfigError{Detail: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is a registration-time configuration error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ProblemDetail is an RFC 9457 problem details response.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string            `json:"type,omitempty"`
	Title    string            `json:"title,omitempty"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }

// ValidationError describes a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// validationProblem wraps collected field failures into a single ProblemDetail.
// Every failing field is enumerated, not just the first.
func validationProblem(errs []ValidationError) error {
	return &ProblemDetail{
		Type:   "about:blank",
		Title:  "Validation Failed",
		Status: http.StatusBadRequest,
		Detail: fmt.Sprintf("%d constraint violation(s)", len(errs)),
		Errors: errs,
	}
}

// HTTPError is an error with an HTTP status code.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// IsClientError reports whether err maps to a 4xx status.
func IsClientError(err error) bool {
	s := ErrorStatus(err)
	return s >= 400 && s < 500
}

// IsCancellation reports whether err represents a client disconnect or
// context cancellation during binding. Cancellation is distinct from client
// and server errors: no response can be produced for it.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

package identity

import (
	"errors"
	"fmt"
	"net/http"
)

// OpError is a typed operation error with a stable Op + Kind contract for callers/tests.
// Kind is one of the sentinel kinds; Err is the underlying cause, if any.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause, so errors.Is(err, context.Canceled) still works.
func (e OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusError reports a non-2xx response from the Identity Service.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("%s: %v: %d %s", e.Op, ErrHTTPStatus, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e StatusError) Unwrap() error { return ErrHTTPStatus }

// IsUnauthorized reports whether err is a 401 from the Identity Service.
func IsUnauthorized(err error) bool {
	var se StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// Classify maps an error to a stable, low-cardinality label.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotSuccessful):
		return "application"
	case errors.Is(err, ErrHTTPStatus):
		return "http_status"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "error"
	}
}

package identity

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to log/metric labels).
var (
	// ErrTransport means the request never produced an HTTP response (network, timeout, cancel).
	ErrTransport = errors.New("transport")
	// ErrHTTPStatus means the service answered with a non-2xx status.
	ErrHTTPStatus = errors.New("http_status")
	// ErrNotSuccessful means a 2xx response carried success=false.
	ErrNotSuccessful = errors.New("not_successful")
	// ErrDecode means the response body was not the expected JSON document.
	ErrDecode = errors.New("decode")
	// ErrInvalidInput is returned for unusable client configuration (e.g. base URL).
	ErrInvalidInput = errors.New("invalid_input")
)

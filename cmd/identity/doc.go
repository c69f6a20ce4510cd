// Package identity is the client side of the remote Identity Service.
//
// It issues the two calls the session core depends on (refresh and current user),
// carries the service's cookies in a jar, echoes the CSRF double-submit cookie on
// refresh, and classifies failures into transport, HTTP status and application
// level errors so callers can treat them uniformly.
package identity

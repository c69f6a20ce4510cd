// Package session implements the client-side Session Controller.
//
// The controller owns authentication state for one client process: it bootstraps from a
// durable "was authenticated" flag, confirms the server session through the Identity Service
// refresh endpoint, keeps the credential alive with a periodic refresh while authenticated,
// and exposes login/logout plus a read + subscribe interface to the shell.
//
// The controller never reads the credential itself. The proof of a valid session is the
// server-set cookie carried by the identity client's cookie jar.
package session

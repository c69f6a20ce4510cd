// Package flagstore implements the durable flag store: a tiny key/value persistence
// layer that survives process restarts, the client-side analog of browser local storage.
//
// The session core stores exactly one flag ("isAuthenticated" = "true") in it. The flag is
// a cache of intent, never proof of a valid session.
//
// Backends: in-memory (tests, ephemeral runs), file (default, per-user config dir),
// Postgres (shared kiosks/devices managed centrally) and Redis.
package flagstore

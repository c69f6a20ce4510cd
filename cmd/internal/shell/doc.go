// Package shell is the thin HTTP glue around the Session Controller: view routes with
// the protected-route guard, the /session read/login/logout surface and the
// /session/events websocket stream.
package shell

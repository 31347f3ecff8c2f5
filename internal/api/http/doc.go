// Package http implements the REST API of the desktop.
//
// Every handler acts on the desktop of the authenticated caller. Window
// operations on unknown ids answer 200 with success=false, mirroring the
// registry's no-op semantics; opening an app the caller's roles do not
// allow answers 403.
package http

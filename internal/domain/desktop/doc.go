// Package desktop keeps one virtual desktop per signed-in user.
//
// A Desktop pairs a window registry with the assistant conversation. The
// Registry creates desktops on first use, keeps the metrics in step with
// their window events, and drops them on sign-out or after a period of
// inactivity. Nothing is persisted.
package desktop

// Package main is the entry point for the MCPD desktop backend.
//
// The server keeps one desktop per signed-in officer: the window stack of
// the MDC launcher, the role-filtered app catalog and the AI assistant
// conversation. The browser front-end talks to it over REST and receives
// live window and chat updates over a WebSocket.
//
// Architecture:
//
//	Browser (MDC) → Desktop Backend → Auth/REST backend (identity, roles)
//	                                → Chat function (SSE stream)
//
// Commands:
//
//	mdc-server serve      start the HTTP/WebSocket server (default)
//	mdc-server catalog    print the apps visible to a set of roles
//
// Configuration comes from environment variables; serve flags override them.
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main

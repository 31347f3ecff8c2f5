// Package middleware holds the gin middleware shared by every route:
// CORS, per-client rate limiting, request ids and access logging.
package middleware

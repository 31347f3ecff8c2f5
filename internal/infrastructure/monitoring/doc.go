/*
Package monitoring provides Prometheus metrics for the desktop backend.

# Metrics

- HTTP request counts and latency, labelled by route template
- Window registry size and mutations (open, focus, minimize, ...)
- Live desktops
- Assistant streams by outcome, decoded deltas and stream duration
- Identity lookups
- WebSocket connections and messages

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring

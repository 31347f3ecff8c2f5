// Package config provides 12-factor configuration management for the MDC
// desktop backend.
//
// Configuration is loaded from environment variables with sensible defaults.
// Window placement can additionally be tuned with a TOML desktop profile.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Auth: authentication / data-store backend URL and key
//   - Chat: assistant backend URL, key and stream timeout
//   - Desktop: catalog YAML and desktop profile paths
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	profile, err := config.LoadProfile(cfg.Desktop.ProfilePath)
//
// Desktop profile:
//
//	[window]
//	base_x = 100
//	base_y = 60
//	cascade_step = 30
//	cascade_slots = 8
//	width = 800
//	height = 550
package config

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/mcpd/desktop/backend/internal/domain/window"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Chat      ChatConfig
	Desktop   DesktopConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	AllowedOrigins  []string      `envconfig:"CORS_ORIGINS" default:"*"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// AuthConfig points at the authentication/data-store backend.
type AuthConfig struct {
	URL      string        `envconfig:"AUTH_URL" default:"http://localhost:54321"`
	APIKey   string        `envconfig:"AUTH_API_KEY"`
	CacheTTL time.Duration `envconfig:"AUTH_CACHE_TTL" default:"30s"`
}

// ChatConfig holds the assistant backend settings.
type ChatConfig struct {
	URL     string        `envconfig:"CHAT_URL" default:"http://localhost:54321/functions/v1/mcpd-ai"`
	APIKey  string        `envconfig:"CHAT_API_KEY"`
	Timeout time.Duration `envconfig:"CHAT_TIMEOUT" default:"2m"`
}

// DesktopConfig locates the app catalog and the window layout profile.
// Empty paths select the built-in defaults.
type DesktopConfig struct {
	CatalogPath string `envconfig:"CATALOG_PATH"`
	ProfilePath string `envconfig:"DESKTOP_PROFILE"`
	// Desktops untouched for IdleTimeout are dropped every SweepInterval.
	// Zero disables the sweep.
	IdleTimeout   time.Duration `envconfig:"DESKTOP_IDLE_TIMEOUT" default:"30m"`
	SweepInterval time.Duration `envconfig:"DESKTOP_SWEEP_INTERVAL" default:"1m"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			URL:      "http://localhost:54321",
			CacheTTL: 30 * time.Second,
		},
		Chat: ChatConfig{
			URL:     "http://localhost:54321/functions/v1/mcpd-ai",
			Timeout: 2 * time.Minute,
		},
		Desktop: DesktopConfig{
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Profile describes how new windows are placed on the desktop.
type Profile struct {
	Window WindowProfile `toml:"window"`
}

// WindowProfile is the [window] table of a desktop profile.
type WindowProfile struct {
	BaseX        int `toml:"base_x"`
	BaseY        int `toml:"base_y"`
	CascadeStep  int `toml:"cascade_step"`
	CascadeSlots int `toml:"cascade_slots"`
	Width        int `toml:"width"`
	Height       int `toml:"height"`
}

// DefaultProfile returns the stock MDC layout.
func DefaultProfile() Profile {
	return Profile{
		Window: WindowProfile{
			BaseX:        100,
			BaseY:        60,
			CascadeStep:  30,
			CascadeSlots: 8,
			Width:        800,
			Height:       550,
		},
	}
}

// LoadProfile reads a TOML desktop profile. Keys missing from the file keep
// their default value; an empty path returns the defaults.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("failed to read desktop profile: %w", err)
	}
	if err := toml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("failed to parse desktop profile %s: %w", path, err)
	}
	if err := profile.validate(); err != nil {
		return profile, fmt.Errorf("invalid desktop profile %s: %w", path, err)
	}
	return profile, nil
}

// Layout converts the profile into the window manager's placement rules.
func (p Profile) Layout() window.Layout {
	w := p.Window
	return window.Layout{
		BaseX:        w.BaseX,
		BaseY:        w.BaseY,
		CascadeStep:  w.CascadeStep,
		CascadeSlots: w.CascadeSlots,
		Width:        w.Width,
		Height:       w.Height,
	}
}

func (p Profile) validate() error {
	w := p.Window
	if w.Width <= 0 || w.Height <= 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", w.Width, w.Height)
	}
	if w.CascadeSlots <= 0 {
		return fmt.Errorf("cascade_slots must be positive, got %d", w.CascadeSlots)
	}
	return nil
}

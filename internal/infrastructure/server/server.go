package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/mcpd/desktop/backend/internal/api/http"
	"github.com/mcpd/desktop/backend/internal/api/middleware"
	"github.com/mcpd/desktop/backend/internal/api/ws"
	"github.com/mcpd/desktop/backend/internal/auth"
	"github.com/mcpd/desktop/backend/internal/chat"
	"github.com/mcpd/desktop/backend/internal/domain/catalog"
	"github.com/mcpd/desktop/backend/internal/domain/desktop"
	"github.com/mcpd/desktop/backend/internal/infrastructure/config"
	"github.com/mcpd/desktop/backend/internal/infrastructure/logging"
	"github.com/mcpd/desktop/backend/internal/infrastructure/monitoring"
	"github.com/mcpd/desktop/backend/internal/infrastructure/resilience"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	catalog  *catalog.Catalog
	desktops *desktop.Registry
	authn    *auth.Client
	breaker  *resilience.Breaker
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer wires every component from cfg. A nil logger is built from cfg.Logging.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing MCPD Desktop server",
		zap.String("port", cfg.Server.Port),
		zap.String("auth_url", cfg.Auth.URL),
		zap.String("chat_url", cfg.Chat.URL),
	)

	metrics := monitoring.NewMetrics()

	cat, err := loadCatalog(cfg.Desktop.CatalogPath)
	if err != nil {
		return nil, err
	}
	logger.Info("App catalog loaded", zap.Int("apps", len(cat.Apps())))

	profile, err := config.LoadProfile(cfg.Desktop.ProfilePath)
	if err != nil {
		return nil, err
	}

	breakerLog := logger.Component("breaker")
	breaker := resilience.New("chat", resilience.Settings{
		OnStateChange: func(name string, from, to resilience.State) {
			breakerLog.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	chatClient := chat.NewClient(chat.ClientConfig{
		URL:     cfg.Chat.URL,
		APIKey:  cfg.Chat.APIKey,
		Timeout: cfg.Chat.Timeout,
	}, breaker, logger.Component("chat"))

	authClient := auth.NewClient(auth.ClientConfig{
		URL:      cfg.Auth.URL,
		APIKey:   cfg.Auth.APIKey,
		CacheTTL: cfg.Auth.CacheTTL,
	}, metrics, logger.Component("auth"))

	desktops := desktop.NewRegistry(profile.Layout(), chatClient, metrics, logger.Component("desktop"))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.Server.AllowedOrigins
	router.Use(middleware.CORS(corsCfg))

	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(cat, desktops, authClient, breaker, logger.Component("api"))
	wsHandler := ws.NewHandler(desktops, authClient, metrics, logger.Component("ws"), ws.Config{})

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/ws", wsHandler.HandleConnection)

	api := router.Group("/api", auth.Middleware(authClient))
	handlers.Register(api)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		catalog:  cat,
		desktops: desktops,
		authn:    authClient,
		breaker:  breaker,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Desktops returns the per-user desktop registry
func (s *Server) Desktops() *desktop.Registry {
	return s.desktops
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweepLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down server...")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return <-errCh
}

func (s *Server) sweepLoop(ctx context.Context) {
	idle, every := s.config.Desktop.IdleTimeout, s.config.Desktop.SweepInterval
	if idle <= 0 || every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.desktops.Sweep(idle); n > 0 {
				s.logger.Info("Dropped idle desktops", zap.Int("count", n))
			}
		}
	}
}

// Close releases every desktop and flushes the logger
func (s *Server) Close() error {
	for _, userID := range s.desktops.Users() {
		s.desktops.Remove(userID)
	}
	_ = s.logger.Sync()
	return nil
}

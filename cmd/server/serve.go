package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mcpd/desktop/backend/internal/infrastructure/config"
	"github.com/mcpd/desktop/backend/internal/infrastructure/logging"
	"github.com/mcpd/desktop/backend/internal/infrastructure/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	Long: `Start the desktop server. Settings come from the environment
(PORT, AUTH_URL, CHAT_URL, CATALOG_PATH, DESKTOP_PROFILE, LOG_LEVEL, ...);
flags override them.

Examples:
  mdc-server serve
  mdc-server serve --port 9000 --dev
  mdc-server serve --catalog /etc/mdc/apps.yaml --profile /etc/mdc/desktop.toml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("port", "", "Server port (overrides PORT)")
	cmd.Flags().String("catalog", "", "App catalog YAML (overrides CATALOG_PATH)")
	cmd.Flags().String("profile", "", "Desktop profile TOML (overrides DESKTOP_PROFILE)")
	cmd.Flags().Bool("dev", false, "Development logging (colored, debug level)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Error("Failed to create server", zap.Error(err))
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// loadConfig reads the environment and applies flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}
	if path, _ := cmd.Flags().GetString("catalog"); path != "" {
		cfg.Desktop.CatalogPath = path
	}
	if path, _ := cmd.Flags().GetString("profile"); path != "" {
		cfg.Desktop.ProfilePath = path
	}
	if dev, _ := cmd.Flags().GetBool("dev"); dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

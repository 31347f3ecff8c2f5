package main

import (
	"github.com/spf13/cobra"

	apihttp "github.com/mcpd/desktop/backend/internal/api/http"
)

var rootCmd = &cobra.Command{
	Use:   "mdc-server",
	Short: "MCPD mobile data computer desktop backend",
	Long: `Serves the MDC desktop: per-officer window state, the application
catalog filtered by role, and the streaming AI assistant.

Running without a subcommand is the same as "serve".`,
	Version:      apihttp.Version,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	addServeFlags(rootCmd)
}

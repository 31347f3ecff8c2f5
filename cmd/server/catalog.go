package main

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/mcpd/desktop/backend/internal/auth"
	"github.com/mcpd/desktop/backend/internal/domain/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the apps visible to a set of roles",
	Long: `Load the app catalog and print the entries a user holding the given
roles would see in the launcher. Holding "administrator" grants admin access.

Examples:
  mdc-server catalog --roles officer
  mdc-server catalog --roles officer,internal_affairs --format json
  mdc-server catalog --file /etc/mdc/apps.yaml --roles administrator`,
	Args: cobra.NoArgs,
	RunE: runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().StringSlice("roles", nil, "Roles held by the user (comma separated)")
	catalogCmd.Flags().String("file", "", "App catalog YAML (default: built-in catalog)")
	catalogCmd.Flags().String("format", "yaml", "Output format: yaml, json")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	roles, _ := cmd.Flags().GetStringSlice("roles")
	path, _ := cmd.Flags().GetString("file")
	format, _ := cmd.Flags().GetString("format")

	var (
		cat *catalog.Catalog
		err error
	)
	if path == "" {
		cat, err = catalog.Default()
	} else {
		cat, err = catalog.Load(path)
	}
	if err != nil {
		return err
	}

	ident := auth.NewIdentity("", "", "", roles)
	apps := cat.VisibleTo(ident.Roles, ident.IsAdmin)
	if apps == nil {
		apps = []catalog.App{}
	}

	var out []byte
	switch strings.ToLower(format) {
	case "yaml":
		out, err = yaml.Marshal(apps)
	case "json":
		out, err = sonic.ConfigStd.MarshalIndent(apps, "", "  ")
		out = append(out, '\n')
	default:
		return fmt.Errorf("unsupported format: %s (use yaml or json)", format)
	}
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/mcpd/desktop/backend/internal/domain/window"
	"github.com/mcpd/desktop/backend/internal/shared/utils"
)

//go:embed apps.yaml
var defaultCatalog []byte

// App is a launchable unit of functionality
type App struct {
	ID            string   `yaml:"id" json:"id"`
	Title         string   `yaml:"title" json:"title"`
	Icon          string   `yaml:"icon" json:"icon"`
	Component     string   `yaml:"component" json:"component"`
	AdminOnly     bool     `yaml:"admin_only" json:"admin_only,omitempty"`
	RolesRequired []string `yaml:"roles_required" json:"roles_required,omitempty"`
}

// Descriptor converts the app into a window open request
func (a App) Descriptor() window.Descriptor {
	return window.Descriptor{
		AppID:     a.ID,
		Title:     a.Title,
		Component: a.Component,
	}
}

// Catalog is an ordered, read-only set of apps
type Catalog struct {
	apps  []App
	index map[string]int
}

type catalogFile struct {
	Apps []App `yaml:"apps"`
}

// Default returns the built-in catalog
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from a YAML file; an empty path returns the default
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from YAML
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(file.Apps)
}

// New validates apps and builds a catalog preserving their order
func New(apps []App) (*Catalog, error) {
	if len(apps) == 0 {
		return nil, fmt.Errorf("catalog has no apps")
	}

	c := &Catalog{
		apps:  make([]App, 0, len(apps)),
		index: make(map[string]int, len(apps)),
	}
	for _, app := range apps {
		if err := utils.ValidateID(app.ID, "app id", true); err != nil {
			return nil, err
		}
		if app.Title == "" {
			return nil, fmt.Errorf("app %s has no title", app.ID)
		}
		if _, dup := c.index[app.ID]; dup {
			return nil, fmt.Errorf("duplicate app id %s", app.ID)
		}
		c.index[app.ID] = len(c.apps)
		c.apps = append(c.apps, app)
	}
	return c, nil
}

// Apps returns all apps in catalog order
func (c *Catalog) Apps() []App {
	out := make([]App, len(c.apps))
	copy(out, c.apps)
	return out
}

// Lookup finds an app by id
func (c *Catalog) Lookup(appID string) (App, bool) {
	i, ok := c.index[appID]
	if !ok {
		return App{}, false
	}
	return c.apps[i], true
}

// VisibleTo filters the catalog for a caller
func (c *Catalog) VisibleTo(roles []string, isAdmin bool) []App {
	return Visible(c.apps, roles, isAdmin)
}

// Allowed reports whether a caller may open the app
func Allowed(app App, roles []string, isAdmin bool) bool {
	if app.AdminOnly && !isAdmin {
		return false
	}
	if len(app.RolesRequired) == 0 {
		return true
	}
	for _, required := range app.RolesRequired {
		for _, held := range roles {
			if held == required {
				return true
			}
		}
	}
	return false
}

// Visible returns the apps a caller with the given roles may see, in order.
// Admin-only apps need isAdmin; apps listing required roles need at least
// one of them.
func Visible(apps []App, roles []string, isAdmin bool) []App {
	out := make([]App, 0, len(apps))
	for _, app := range apps {
		if Allowed(app, roles, isAdmin) {
			out = append(out, app)
		}
	}
	return out
}

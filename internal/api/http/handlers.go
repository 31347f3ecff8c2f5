package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mcpd/desktop/backend/internal/auth"
	"github.com/mcpd/desktop/backend/internal/domain/catalog"
	"github.com/mcpd/desktop/backend/internal/domain/desktop"
	"github.com/mcpd/desktop/backend/internal/infrastructure/resilience"
)

// Version is reported by the root and health endpoints
const Version = "1.0.0"

// TokenForgetter drops cached credentials on sign-out
type TokenForgetter interface {
	Forget(token string)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	catalog  *catalog.Catalog
	desktops *desktop.Registry
	tokens   TokenForgetter
	breaker  *resilience.Breaker
	log      *zap.Logger
}

// NewHandlers creates a new handler set. tokens and breaker may be nil.
func NewHandlers(
	cat *catalog.Catalog,
	desktops *desktop.Registry,
	tokens TokenForgetter,
	breaker *resilience.Breaker,
	log *zap.Logger,
) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		catalog:  cat,
		desktops: desktops,
		tokens:   tokens,
		breaker:  breaker,
		log:      log,
	}
}

// Register mounts the authenticated API routes on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/apps", h.ListApps)

	r.GET("/desktop", h.GetDesktop)
	r.DELETE("/desktop", h.SignOut)

	r.GET("/windows", h.ListWindows)
	r.POST("/windows", h.OpenApp)
	r.DELETE("/windows/:id", h.CloseWindow)
	r.POST("/windows/:id/focus", h.FocusWindow)
	r.POST("/windows/:id/minimize", h.MinimizeWindow)
	r.POST("/windows/:id/maximize", h.MaximizeWindow)
	r.POST("/windows/:id/restore", h.RestoreWindow)
	r.POST("/windows/:id/toggle", h.ToggleWindow)
	r.POST("/windows/:id/toggle-maximize", h.ToggleMaximizeWindow)
	r.PUT("/windows/:id/position", h.UpdatePosition)
	r.PUT("/windows/:id/size", h.UpdateSize)

	r.POST("/logs", h.IngestLogs)

	r.GET("/chat", h.GetChat)
	r.POST("/chat", h.SendChat)
	r.DELETE("/chat", h.ClearChat)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "MCPD Desktop",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"version":  Version,
		"desktops": h.desktops.Count(),
		"apps":     len(h.catalog.Apps()),
	}
	if h.breaker != nil {
		stats := h.breaker.Stats()
		body["chat_backend"] = stats
		if stats.State == resilience.StateOpen.String() {
			body["status"] = "degraded"
		}
	}
	c.JSON(http.StatusOK, body)
}

// ListApps lists the catalog entries visible to the caller
func (h *Handlers) ListApps(c *gin.Context) {
	ident, ok := identity(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"apps":     h.catalog.VisibleTo(ident.Roles, ident.IsAdmin),
		"is_admin": ident.IsAdmin,
		"roles":    ident.Roles,
	})
}

// GetDesktop returns windows and conversation in one snapshot
func (h *Handlers) GetDesktop(c *gin.Context) {
	d, _, ok := h.desktop(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d.Snapshot())
}

// SignOut discards the caller's desktop and cached session
func (h *Handlers) SignOut(c *gin.Context) {
	ident, ok := identity(c)
	if !ok {
		return
	}
	removed := h.desktops.Remove(ident.UserID)
	if h.tokens != nil {
		h.tokens.Forget(ident.Token)
	}
	h.log.Info("signed out", zap.String("user_id", ident.UserID))
	c.JSON(http.StatusOK, gin.H{"success": true, "removed": removed})
}

func identity(c *gin.Context) (auth.Identity, bool) {
	ident, ok := auth.FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthenticated.Error()})
	}
	return ident, ok
}

func (h *Handlers) desktop(c *gin.Context) (*desktop.Desktop, auth.Identity, bool) {
	ident, ok := identity(c)
	if !ok {
		return nil, ident, false
	}
	return h.desktops.Get(ident.UserID), ident, true
}

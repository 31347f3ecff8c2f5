package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mcpd/desktop/backend/internal/domain/catalog"
	"github.com/mcpd/desktop/backend/internal/domain/window"
	"github.com/mcpd/desktop/backend/internal/shared/utils"
)

type openRequest struct {
	AppID string `json:"app_id" binding:"required"`
}

type positionRequest struct {
	X *int `json:"x" binding:"required"`
	Y *int `json:"y" binding:"required"`
}

type sizeRequest struct {
	Width  int `json:"width" binding:"required"`
	Height int `json:"height" binding:"required"`
}

// ListWindows lists the caller's windows in opening order
func (h *Handlers) ListWindows(c *gin.Context) {
	d, _, ok := h.desktop(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"windows": d.Windows.Windows(),
		"stats":   d.Windows.Stats(),
	})
}

// OpenApp focuses, restores or opens the window of a catalog app
func (h *Handlers) OpenApp(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateID(req.AppID, "app_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, ident, ok := h.desktop(c)
	if !ok {
		return
	}

	app, found := h.catalog.Lookup(req.AppID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown app", "app_id": req.AppID})
		return
	}
	if !catalog.Allowed(app, ident.Roles, ident.IsAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "app not available for your roles", "app_id": req.AppID})
		return
	}

	w := d.Windows.Open(app.Descriptor())
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"window_id": w.ID,
		"window":    w,
	})
}

// CloseWindow removes a window
func (h *Handlers) CloseWindow(c *gin.Context) {
	h.windowAction(c, (*window.Manager).Close)
}

// FocusWindow brings a window to the front
func (h *Handlers) FocusWindow(c *gin.Context) {
	h.windowAction(c, (*window.Manager).Focus)
}

// MinimizeWindow hides a window
func (h *Handlers) MinimizeWindow(c *gin.Context) {
	h.windowAction(c, (*window.Manager).Minimize)
}

// MaximizeWindow maximizes a window
func (h *Handlers) MaximizeWindow(c *gin.Context) {
	h.windowAction(c, (*window.Manager).Maximize)
}

// RestoreWindow restores a window to its normal state
func (h *Handlers) RestoreWindow(c *gin.Context) {
	h.windowAction(c, (*window.Manager).Restore)
}

// ToggleWindow is the taskbar click
func (h *Handlers) ToggleWindow(c *gin.Context) {
	h.windowAction(c, (*window.Manager).Toggle)
}

// ToggleMaximizeWindow is the title bar maximize button
func (h *Handlers) ToggleMaximizeWindow(c *gin.Context) {
	h.windowAction(c, (*window.Manager).ToggleMaximize)
}

// UpdatePosition moves a window
func (h *Handlers) UpdatePosition(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidatePosition(*req.X, *req.Y); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.windowAction(c, func(m *window.Manager, id string) bool {
		return m.Move(id, *req.X, *req.Y)
	})
}

// UpdateSize resizes a window
func (h *Handlers) UpdateSize(c *gin.Context) {
	var req sizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateSize(req.Width, req.Height); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.windowAction(c, func(m *window.Manager, id string) bool {
		return m.Resize(id, req.Width, req.Height)
	})
}

// windowAction runs op on the :id window. Unknown ids are reported with
// success=false, never as an HTTP error.
func (h *Handlers) windowAction(c *gin.Context, op func(*window.Manager, string) bool) {
	windowID := c.Param("id")
	if err := utils.ValidateID(windowID, "window_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, _, ok := h.desktop(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   op(d.Windows, windowID),
		"window_id": windowID,
	})
}

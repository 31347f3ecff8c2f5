package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mcpd/desktop/backend/internal/chat"
)

// statusClientClosedRequest is logged when the caller goes away mid-stream
const statusClientClosedRequest = 499

type chatRequest struct {
	Message string `json:"message"`
}

// GetChat returns the caller's conversation
func (h *Handlers) GetChat(c *gin.Context) {
	d, _, ok := h.desktop(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": d.Conversation().Messages(),
		"busy":     d.Assistant.Busy(),
	})
}

// SendChat sends a message to the assistant and waits for the reply
func (h *Handlers) SendChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, ident, ok := h.desktop(c)
	if !ok {
		return
	}

	outcome, err := d.Assistant.Send(c.Request.Context(), ident.Token, req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrInvalidMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, chat.ErrBusy), errors.Is(err, chat.ErrClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.log.Debug("chat request abandoned", zap.String("user_id", ident.UserID), zap.Error(err))
		c.AbortWithStatus(statusClientClosedRequest)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcome":  outcome,
		"messages": d.Conversation().Messages(),
	})
}

// ClearChat empties the conversation
func (h *Handlers) ClearChat(c *gin.Context) {
	d, _, ok := h.desktop(c)
	if !ok {
		return
	}
	if err := d.Assistant.Reset(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

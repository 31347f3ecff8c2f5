package http

import (
	"html"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const (
	maxClientLogEntries  = 100
	maxClientLogMessage  = 2048
	maxClientLogContexts = 20
)

// Log viewers render messages as HTML; front-end errors often carry markup
var logPolicy = bluemonday.StrictPolicy()

// ClientLogEntry is one log line reported by the desktop front-end
type ClientLogEntry struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
	Timestamp string         `json:"timestamp"`
}

// ClientLogRequest is a batch of front-end log lines
type ClientLogRequest struct {
	Entries []ClientLogEntry `json:"entries" binding:"required"`
}

// IngestLogs writes front-end log lines into the server log, tagged with the caller
func (h *Handlers) IngestLogs(c *gin.Context) {
	var req ClientLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log request format"})
		return
	}
	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no log entries provided"})
		return
	}
	if len(req.Entries) > maxClientLogEntries {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too many log entries"})
		return
	}

	ident, ok := identity(c)
	if !ok {
		return
	}
	logger := h.log.With(zap.String("source", "ui"), zap.String("user_id", ident.UserID))
	for _, entry := range req.Entries {
		logClientEntry(logger, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"entries_received": len(req.Entries),
		"timestamp":        time.Now().Unix(),
	})
}

func logClientEntry(logger *zap.Logger, entry ClientLogEntry) {
	msg := clientLogMessage(entry.Message)

	fields := make([]zap.Field, 0, min(len(entry.Context), maxClientLogContexts)+1)
	fields = append(fields, zap.String("ui_timestamp", entry.Timestamp))
	n := 0
	for key, value := range entry.Context {
		if n == maxClientLogContexts {
			break
		}
		n++
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch entry.Level {
	case "error":
		logger.Error(msg, fields...)
	case "warn":
		logger.Warn(msg, fields...)
	case "debug", "verbose":
		logger.Debug(msg, fields...)
	default:
		logger.Info(msg, fields...)
	}
}

// clientLogMessage strips markup and cuts msg to at most maxClientLogMessage
// bytes without splitting a rune
func clientLogMessage(msg string) string {
	msg = strings.TrimSpace(html.UnescapeString(logPolicy.Sanitize(msg)))
	if len(msg) <= maxClientLogMessage {
		return msg
	}
	cut := maxClientLogMessage
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

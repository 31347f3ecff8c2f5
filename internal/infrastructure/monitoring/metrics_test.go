package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsolated(t *testing.T) {
	// Two instances must not collide on registration
	a := NewMetrics()
	b := NewMetrics()

	a.RecordWindowOp("opened")
	a.RecordWindowOp("opened")
	b.RecordWindowOp("opened")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.WindowOps.WithLabelValues("opened")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.WindowOps.WithLabelValues("opened")))
}

func TestChatMetrics(t *testing.T) {
	m := NewMetrics()

	m.RecordChatStream("completed", 250*time.Millisecond)
	m.IncChatDeltas()
	m.IncChatDeltas()
	m.AddWindows(3)
	m.AddWindows(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatStreams.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChatDeltas))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WindowsOpen))
}

func TestMiddlewareRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.POST("/api/windows/:id/focus", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/windows/win_1/focus", nil))
	require.Equal(t, http.StatusOK, w.Code)

	count := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/api/windows/:id/focus", "200"))
	assert.Equal(t, 1.0, count)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mdc_http_requests_total")
}

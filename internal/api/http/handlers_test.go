package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mcpd/desktop/backend/internal/auth"
	"github.com/mcpd/desktop/backend/internal/chat"
	"github.com/mcpd/desktop/backend/internal/domain/catalog"
	"github.com/mcpd/desktop/backend/internal/domain/desktop"
	"github.com/mcpd/desktop/backend/internal/domain/window"
)

type resolverStub map[string]auth.Identity

func (r resolverStub) Resolve(_ context.Context, token string) (auth.Identity, error) {
	ident, ok := r[token]
	if !ok {
		return auth.Identity{}, auth.ErrUnauthenticated
	}
	return ident, nil
}

type forgetSpy struct{ forgotten []string }

func (f *forgetSpy) Forget(token string) { f.forgotten = append(f.forgotten, token) }

type replyStreamer struct{ body string }

func (s replyStreamer) Stream(context.Context, string, []chat.Message) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.body)), nil
}

type testEnv struct {
	router   *gin.Engine
	desktops *desktop.Registry
	tokens   *forgetSpy
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat, err := catalog.Default()
	require.NoError(t, err)

	streamer := replyStreamer{body: "data: {\"choices\":[{\"delta\":{\"content\":\"Copy that\"}}]}\ndata: [DONE]\n"}
	desktops := desktop.NewRegistry(window.DefaultLayout(), streamer, nil, nil)
	tokens := &forgetSpy{}
	h := NewHandlers(cat, desktops, tokens, nil, nil)

	resolver := resolverStub{
		"officer": auth.NewIdentity("u-officer", "officer@mcpd.gov", "officer", []string{"officer"}),
		"ia":      auth.NewIdentity("u-ia", "ia@mcpd.gov", "ia", []string{"internal_affairs"}),
		"chief":   auth.NewIdentity("u-chief", "chief@mcpd.gov", "chief", []string{"administrator"}),
	}

	router := gin.New()
	router.GET("/health", h.Health)
	api := router.Group("/api", auth.Middleware(resolver))
	h.Register(api)

	return &testEnv{router: router, desktops: desktops, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func appIDs(t *testing.T, body map[string]any) []string {
	t.Helper()
	apps, ok := body["apps"].([]any)
	require.True(t, ok)
	ids := make([]string, 0, len(apps))
	for _, a := range apps {
		ids = append(ids, a.(map[string]any)["id"].(string))
	}
	return ids
}

func TestRequiresAuthentication(t *testing.T) {
	env := setup(t)

	code, _ := env.do(t, http.MethodGet, "/api/windows", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = env.do(t, http.MethodGet, "/api/windows", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestListAppsByRole(t *testing.T) {
	env := setup(t)

	tests := []struct {
		token string
		want  []string
	}{
		{"officer", []string{"subjects", "records", "vehicles", "reports", "ai", "settings"}},
		{"ia", []string{"subjects", "records", "vehicles", "reports", "ai", "ia", "settings"}},
		{"chief", []string{"subjects", "records", "vehicles", "reports", "ai", "ia", "admin", "settings"}},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			code, body := env.do(t, http.MethodGet, "/api/apps", tt.token, nil)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.want, appIDs(t, body))
		})
	}
}

func TestOpenApp(t *testing.T) {
	env := setup(t)

	code, body := env.do(t, http.MethodPost, "/api/windows", "officer", gin.H{"app_id": "subjects"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	windowID := body["window_id"].(string)
	win := body["window"].(map[string]any)
	assert.Equal(t, "Base de Personas", win["title"])
	assert.Equal(t, float64(130), win["x"])
	assert.Equal(t, float64(90), win["y"])
	assert.Equal(t, float64(1), win["z_index"])

	code, body = env.do(t, http.MethodPost, "/api/windows", "officer", gin.H{"app_id": "subjects"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, windowID, body["window_id"])

	code, _ = env.do(t, http.MethodPost, "/api/windows", "officer", gin.H{"app_id": "admin"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = env.do(t, http.MethodPost, "/api/windows", "officer", gin.H{"app_id": "ia"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = env.do(t, http.MethodPost, "/api/windows", "officer", gin.H{"app_id": "casino"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodPost, "/api/windows", "officer", gin.H{"app_id": "../etc"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/api/windows", "officer", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/api/windows", "chief", gin.H{"app_id": "admin"})
	assert.Equal(t, http.StatusOK, code)
}

func TestWindowLifecycle(t *testing.T) {
	env := setup(t)

	_, body := env.do(t, http.MethodPost, "/api/windows", "officer", gin.H{"app_id": "records"})
	id := body["window_id"].(string)
	base := "/api/windows/" + id

	for _, action := range []string{"minimize", "restore", "maximize", "focus", "toggle", "toggle", "toggle-maximize"} {
		code, body := env.do(t, http.MethodPost, base+"/"+action, "officer", nil)
		require.Equal(t, http.StatusOK, code, action)
		assert.Equal(t, true, body["success"], action)
		assert.Equal(t, id, body["window_id"])
	}

	code, _ := env.do(t, http.MethodPut, base+"/position", "officer", gin.H{"x": -40, "y": 0})
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodPut, base+"/size", "officer", gin.H{"width": 1024, "height": 700})
	require.Equal(t, http.StatusOK, code)

	d, ok := env.desktops.Lookup("u-officer")
	require.True(t, ok)
	w, ok := d.Windows.Get(id)
	require.True(t, ok)
	assert.Equal(t, -40, w.X)
	assert.Equal(t, 0, w.Y)
	assert.Equal(t, 1024, w.Width)
	assert.Equal(t, 700, w.Height)
	assert.False(t, w.Maximized)
	assert.False(t, w.Minimized)

	code, body = env.do(t, http.MethodDelete, base, "officer", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	code, body = env.do(t, http.MethodPost, base+"/focus", "officer", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["success"])

	code, body = env.do(t, http.MethodGet, "/api/windows", "officer", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["windows"])
}

func TestWindowGeometryValidation(t *testing.T) {
	env := setup(t)
	_, body := env.do(t, http.MethodPost, "/api/windows", "officer", gin.H{"app_id": "records"})
	base := "/api/windows/" + body["window_id"].(string)

	code, _ := env.do(t, http.MethodPut, base+"/position", "officer", gin.H{"x": 10})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPut, base+"/size", "officer", gin.H{"width": 0, "height": 300})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPut, base+"/size", "officer", gin.H{"width": -5, "height": 300})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDesktopsAreScopedToCaller(t *testing.T) {
	env := setup(t)

	_, body := env.do(t, http.MethodPost, "/api/windows", "officer", gin.H{"app_id": "records"})
	id := body["window_id"].(string)

	code, body := env.do(t, http.MethodDelete, "/api/windows/"+id, "chief", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["success"])

	_, body = env.do(t, http.MethodGet, "/api/windows", "officer", nil)
	assert.Len(t, body["windows"], 1)
}

func TestChat(t *testing.T) {
	env := setup(t)

	code, body := env.do(t, http.MethodPost, "/api/chat", "officer", gin.H{"message": "10-28 on ABC123"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "completed", body["outcome"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Copy that", msgs[1].(map[string]any)["content"])

	code, _ = env.do(t, http.MethodPost, "/api/chat", "officer", gin.H{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(t, http.MethodGet, "/api/chat", "officer", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["messages"], 2)

	code, _ = env.do(t, http.MethodDelete, "/api/chat", "officer", nil)
	require.Equal(t, http.StatusOK, code)
	_, body = env.do(t, http.MethodGet, "/api/chat", "officer", nil)
	assert.Empty(t, body["messages"])
}

func TestSignOut(t *testing.T) {
	env := setup(t)
	env.do(t, http.MethodPost, "/api/windows", "officer", gin.H{"app_id": "records"})

	code, body := env.do(t, http.MethodDelete, "/api/desktop", "officer", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["removed"])
	assert.Equal(t, []string{"officer"}, env.tokens.forgotten)

	_, ok := env.desktops.Lookup("u-officer")
	assert.False(t, ok)
}

func TestGetDesktop(t *testing.T) {
	env := setup(t)
	env.do(t, http.MethodPost, "/api/windows", "chief", gin.H{"app_id": "admin"})

	code, body := env.do(t, http.MethodGet, "/api/desktop", "chief", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "u-chief", body["user_id"])
	assert.Len(t, body["windows"], 1)
}

func TestIngestLogs(t *testing.T) {
	env := setup(t)

	code, body := env.do(t, http.MethodPost, "/api/logs", "officer", gin.H{
		"entries": []gin.H{{"level": "error", "message": "render failed", "context": gin.H{"app": "records"}}},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["entries_received"])

	code, _ = env.do(t, http.MethodPost, "/api/logs", "officer", gin.H{"entries": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestClientLogMessage(t *testing.T) {
	assert.Equal(t, "render failed in RecordsApp", clientLogMessage(`<b>render failed</b> in <i>RecordsApp</i>`))
	assert.Equal(t, "x < y", clientLogMessage("x &lt; y"))

	// 2047 ASCII bytes then a 3-byte rune straddling the limit
	msg := strings.Repeat("a", maxClientLogMessage-1) + "€" + "tail"
	got := clientLogMessage(msg)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxClientLogMessage-1), got)

	short := strings.Repeat("ñ", 10)
	assert.Equal(t, short, clientLogMessage(short))
}

func TestLogClientEntryStripsMarkup(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	logClientEntry(zap.New(core), ClientLogEntry{
		Level:   "warn",
		Message: "<em>slow</em> render",
		Context: map[string]any{"app": "records"},
	})

	entries := logs.FilterMessage("slow render").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "records", entries[0].ContextMap()["app"])
}

func TestHealth(t *testing.T) {
	env := setup(t)

	code, body := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(8), body["apps"])
}

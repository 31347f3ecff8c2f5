package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type staticResolver map[string]Identity

func (s staticResolver) Resolve(_ context.Context, token string) (Identity, error) {
	if token == "down" {
		return Identity{}, ErrUnavailable
	}
	ident, ok := s[token]
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return ident, nil
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"bearer header", "Bearer abc", "", "abc"},
		{"lowercase scheme", "bearer abc", "", "abc"},
		{"basic scheme", "Basic abc", "", ""},
		{"query fallback", "", "xyz", "xyz"},
		{"header wins", "Bearer abc", "xyz", "abc"},
		{"nothing", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/ws"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, TokenFromRequest(req))
		})
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(staticResolver{"tok": NewIdentity("u1", "a@b.c", "tok", []string{"administrator"})}))
	router.GET("/me", func(c *gin.Context) {
		ident, ok := FromContext(c)
		assert.True(t, ok)
		c.JSON(http.StatusOK, ident)
	})

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"valid", "tok", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"unknown", "nope", http.StatusUnauthorized},
		{"backend down", "down", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"is_admin":true`)
				assert.NotContains(t, w.Body.String(), "tok")
			}
		})
	}
}

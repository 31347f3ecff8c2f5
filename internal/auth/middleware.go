package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const identityKey = "auth.identity"

// TokenFromRequest returns the bearer token of the request. Browsers cannot
// set headers on a WebSocket upgrade, so the token query parameter is
// accepted as a fallback.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Middleware resolves the caller and stores the Identity in the context.
// Requests without a valid token are answered with 401.
func Middleware(resolver Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, err := resolver.Resolve(c.Request.Context(), TokenFromRequest(c.Request))
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, ErrUnavailable) {
				status = http.StatusServiceUnavailable
			}
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}
		c.Set(identityKey, ident)
		c.Next()
	}
}

// FromContext returns the identity stored by Middleware
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	ident, ok := v.(Identity)
	return ident, ok
}

// WithIdentity stores ident in the context, for handlers mounted without Middleware
func WithIdentity(c *gin.Context, ident Identity) {
	c.Set(identityKey, ident)
}

package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	users     map[string]string   // token -> user id
	roles     map[string][]string // user id -> roles
	userCalls atomic.Int32
	status    int
}

func (b *fakeBackend) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		if b.status != 0 {
			w.WriteHeader(b.status)
			return
		}
		token := TokenFromRequest(r)
		userID, ok := b.users[token]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"msg":"invalid JWT"}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/v1/user":
			b.userCalls.Add(1)
			_, _ = io.WriteString(w, `{"id":"`+userID+`","email":"`+userID+`@mcpd.gov"}`)
		case "/rest/v1/user_roles":
			assert.Equal(t, "role", r.URL.Query().Get("select"))
			assert.Equal(t, "eq."+userID, r.URL.Query().Get("user_id"))
			out := "["
			for i, role := range b.roles[userID] {
				if i > 0 {
					out += ","
				}
				out += `{"role":"` + role + `"}`
			}
			_, _ = io.WriteString(w, out+"]")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newBackend(t *testing.T, b *fakeBackend, ttl time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{URL: srv.URL + "/", APIKey: "anon", CacheTTL: ttl, Timeout: 5 * time.Second}, nil, nil)
}

func TestResolveIdentity(t *testing.T) {
	b := &fakeBackend{
		users: map[string]string{"tok-chief": "u1", "tok-officer": "u2"},
		roles: map[string][]string{"u1": {"administrator", "internal_affairs"}, "u2": {"officer"}},
	}
	c := newBackend(t, b, 0)

	chief, err := c.Resolve(context.Background(), "tok-chief")
	require.NoError(t, err)
	assert.Equal(t, "u1", chief.UserID)
	assert.Equal(t, "u1@mcpd.gov", chief.Email)
	assert.Equal(t, []string{"administrator", "internal_affairs"}, chief.Roles)
	assert.True(t, chief.IsAdmin)
	assert.Equal(t, "tok-chief", chief.Token)

	officer, err := c.Resolve(context.Background(), "tok-officer")
	require.NoError(t, err)
	assert.False(t, officer.IsAdmin)
	assert.True(t, officer.HasRole("officer"))
}

func TestResolveUserWithoutRoles(t *testing.T) {
	b := &fakeBackend{users: map[string]string{"tok": "u3"}}
	c := newBackend(t, b, 0)

	ident, err := c.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, ident.Roles)
	assert.NotNil(t, ident.Roles)
	assert.False(t, ident.IsAdmin)
}

func TestResolveRejectsBadTokens(t *testing.T) {
	c := newBackend(t, &fakeBackend{users: map[string]string{}}, time.Minute)

	_, err := c.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = c.Resolve(context.Background(), "forged")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolveBackendDown(t *testing.T) {
	c := newBackend(t, &fakeBackend{status: http.StatusBadGateway}, 0)

	_, err := c.Resolve(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveCachesUntilTTL(t *testing.T) {
	b := &fakeBackend{users: map[string]string{"tok": "u1"}, roles: map[string][]string{"u1": {"officer"}}}
	c := newBackend(t, b, 30*time.Second)

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := c.Resolve(context.Background(), "tok")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), b.userCalls.Load())

	now = now.Add(31 * time.Second)
	_, err := c.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int32(2), b.userCalls.Load())

	c.Forget("tok")
	_, err = c.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int32(3), b.userCalls.Load())
}

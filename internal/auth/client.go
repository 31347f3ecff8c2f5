package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/mcpd/desktop/backend/internal/infrastructure/monitoring"
)

// Resolver turns a session token into an Identity
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// ClientConfig configures the auth backend client
type ClientConfig struct {
	URL      string
	APIKey   string
	CacheTTL time.Duration
	Timeout  time.Duration
}

// Client resolves identities against the auth backend
type Client struct {
	resty   *resty.Client
	apiKey  string
	ttl     time.Duration
	metrics *monitoring.Metrics
	log     *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	identity Identity
	expires  time.Time
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type roleRow struct {
	Role string `json:"role"`
}

// NewClient creates an auth client. metrics may be nil.
func NewClient(cfg ClientConfig, metrics *monitoring.Metrics, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	r := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetTransport(retryClient.HTTPClient.Transport).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json")
	r.JSONMarshal = sonic.Marshal
	r.JSONUnmarshal = sonic.Unmarshal

	return &Client{
		resty:   r,
		apiKey:  cfg.APIKey,
		ttl:     cfg.CacheTTL,
		metrics: metrics,
		log:     log,
		now:     time.Now,
		cache:   make(map[string]cacheEntry),
	}
}

// Resolve returns the identity behind token, from cache when fresh
func (c *Client) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		c.record("missing")
		return Identity{}, ErrUnauthenticated
	}
	if ident, ok := c.cached(token); ok {
		c.record("cached")
		return ident, nil
	}

	user, err := c.user(ctx, token)
	if err != nil {
		c.fail(err)
		return Identity{}, err
	}
	roles, err := c.roles(ctx, token, user.ID)
	if err != nil {
		c.fail(err)
		return Identity{}, err
	}

	ident := NewIdentity(user.ID, user.Email, token, roles)
	c.store(token, ident)
	c.record("ok")
	return ident, nil
}

// Forget drops the cached identity for token
func (c *Client) Forget(token string) {
	c.mu.Lock()
	delete(c.cache, token)
	c.mu.Unlock()
}

func (c *Client) request(ctx context.Context, token string) *resty.Request {
	req := c.resty.R().SetContext(ctx).SetAuthToken(token)
	if c.apiKey != "" {
		req.SetHeader("apikey", c.apiKey)
	}
	return req
}

func (c *Client) user(ctx context.Context, token string) (userResponse, error) {
	var user userResponse
	resp, err := c.request(ctx, token).SetResult(&user).Get("/auth/v1/user")
	if err != nil {
		return user, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return user, ErrUnauthenticated
	case resp.IsError():
		return user, fmt.Errorf("%w: user lookup returned %d", ErrUnavailable, resp.StatusCode())
	case user.ID == "":
		return user, ErrUnauthenticated
	}
	return user, nil
}

func (c *Client) roles(ctx context.Context, token, userID string) ([]string, error) {
	var rows []roleRow
	resp, err := c.request(ctx, token).
		SetQueryParams(map[string]string{
			"select":  "role",
			"user_id": "eq." + userID,
		}).
		SetResult(&rows).
		Get("/rest/v1/user_roles")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: role lookup returned %d", ErrUnavailable, resp.StatusCode())
	}

	roles := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Role != "" {
			roles = append(roles, row.Role)
		}
	}
	return roles, nil
}

func (c *Client) cached(token string) (Identity, bool) {
	if c.ttl <= 0 {
		return Identity{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[token]
	if !ok {
		return Identity{}, false
	}
	if !c.now().Before(entry.expires) {
		delete(c.cache, token)
		return Identity{}, false
	}
	return entry.identity, true
}

func (c *Client) store(token string, ident Identity) {
	if c.ttl <= 0 {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.cache {
		if !now.Before(e.expires) {
			delete(c.cache, k)
		}
	}
	c.cache[token] = cacheEntry{identity: ident, expires: now.Add(c.ttl)}
}

func (c *Client) record(result string) {
	if c.metrics != nil {
		c.metrics.RecordAuthLookup(result)
	}
}

func (c *Client) fail(err error) {
	if errors.Is(err, ErrUnauthenticated) {
		c.record("rejected")
		return
	}
	c.record("unavailable")
	c.log.Warn("auth backend lookup failed", zap.Error(err))
}

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/mcpd/desktop/backend/internal/infrastructure/resilience"
)

// DefaultFailureReason is reported when the backend rejects a request without
// an error message of its own
const DefaultFailureReason = "AI request failed"

// UpstreamError is a non-2xx answer from the chat backend
type UpstreamError struct {
	Status int
	Reason string
}

func (e *UpstreamError) Error() string {
	return e.Reason
}

// Streamer opens the assistant's event stream for a conversation history
type Streamer interface {
	Stream(ctx context.Context, credential string, history []Message) (io.ReadCloser, error)
}

// ClientConfig configures the chat backend client
type ClientConfig struct {
	URL    string
	APIKey string
	// Timeout bounds the wait for response headers. The body stream is
	// governed by the caller's context only.
	Timeout time.Duration
}

// Client calls the chat backend over HTTP
type Client struct {
	resty   *resty.Client
	url     string
	apiKey  string
	breaker *resilience.Breaker
	log     *zap.Logger
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamRequest struct {
	Messages []wireMessage `json:"messages"`
}

type errorBody struct {
	Error string `json:"error"`
}

// NewClient creates a chat backend client. A nil breaker gets a default one.
func NewClient(cfg ClientConfig, breaker *resilience.Breaker, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	if breaker == nil {
		breaker = resilience.New("chat", resilience.Settings{})
	}

	// Pooled transport only; a streamed POST is never replayed
	transport := retryablehttp.NewClient().HTTPClient.Transport
	if t, ok := transport.(*http.Transport); ok {
		t = t.Clone()
		t.ResponseHeaderTimeout = cfg.Timeout
		transport = t
	}

	r := resty.New().
		SetTransport(transport).
		SetHeader("User-Agent", "mdc-desktop/1.0")
	r.JSONMarshal = sonic.Marshal
	r.JSONUnmarshal = sonic.Unmarshal

	return &Client{
		resty:   r,
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		breaker: breaker,
		log:     log,
	}
}

// Breaker exposes the circuit breaker guarding the backend
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// Stream posts the history and returns the response body, decompressed when
// the backend gzip-encodes it. The caller must close the body.
func (c *Client) Stream(ctx context.Context, credential string, history []Message) (io.ReadCloser, error) {
	payload := streamRequest{Messages: make([]wireMessage, 0, len(history))}
	for _, m := range history {
		payload.Messages = append(payload.Messages, wireMessage{Role: string(m.Role), Content: m.Content})
	}

	var body io.ReadCloser
	err := c.breaker.Do(func() error {
		req := c.resty.R().
			SetContext(ctx).
			SetAuthToken(credential).
			SetHeader("Accept", "text/event-stream").
			SetHeader("Accept-Encoding", "gzip").
			SetHeader("Content-Type", "application/json").
			SetBody(payload).
			SetDoNotParseResponse(true)
		if c.apiKey != "" {
			req.SetHeader("apikey", c.apiKey)
		}

		resp, err := req.Post(c.url)
		if err != nil {
			return fmt.Errorf("chat request: %w", err)
		}
		raw := resp.RawBody()

		if resp.IsError() {
			defer raw.Close()
			return c.upstreamError(resp.StatusCode(), raw)
		}

		if strings.EqualFold(resp.Header().Get("Content-Encoding"), "gzip") {
			zr, err := gzip.NewReader(raw)
			if err != nil {
				raw.Close()
				return fmt.Errorf("chat stream gzip: %w", err)
			}
			body = &gzipBody{Reader: zr, raw: raw}
			return nil
		}
		body = raw
		return nil
	}, countsAsHealthy)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) upstreamError(status int, raw io.Reader) error {
	reason := DefaultFailureReason
	data, err := io.ReadAll(io.LimitReader(raw, 64<<10))
	if err == nil && len(data) > 0 {
		var parsed errorBody
		if sonic.Unmarshal(data, &parsed) == nil && strings.TrimSpace(parsed.Error) != "" {
			reason = parsed.Error
		}
	}
	c.log.Warn("chat backend rejected request",
		zap.Int("status", status),
		zap.String("reason", reason))
	return &UpstreamError{Status: status, Reason: reason}
}

// countsAsHealthy keeps caller mistakes and cancellations from tripping the breaker
func countsAsHealthy(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Status < http.StatusInternalServerError
	}
	return false
}

type gzipBody struct {
	*gzip.Reader
	raw io.ReadCloser
}

func (g *gzipBody) Close() error {
	zerr := g.Reader.Close()
	if err := g.raw.Close(); err != nil {
		return err
	}
	return zerr
}

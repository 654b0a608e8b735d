package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pcr-hr/hr-portal/internal/platform/httpx"
)

// TokenSource yields the bearer token for an outbound call.
type TokenSource func(ctx context.Context) (string, error)

// Client performs envelope-aware calls against the upstream API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

// NewClient constructs a Client. A nil httpClient uses a 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient, logger: logger}
}

// WithTokenSource returns a copy of the client that authenticates with ts.
func (c *Client) WithTokenSource(ts TokenSource) *Client {
	clone := *c
	clone.tokens = ts
	return &clone
}

// Request describes one upstream call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// BaseURL overrides the client's base URL for this call.
	BaseURL string
}

// Call performs req and decodes the envelope into Envelope[T].
func Call[T any](ctx context.Context, c *Client, req Request) (Envelope[T], error) {
	var env Envelope[T]

	target := c.baseURL
	if req.BaseURL != "" {
		target = strings.TrimRight(req.BaseURL, "/")
	}
	target += req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return env, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return env, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		token, err := c.tokens(ctx)
		if err != nil {
			return env, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("upstream call failed", slog.String("method", method), slog.String("url", target), slog.Any("error", err))
		return env, fmt.Errorf("%w: %v", httpx.ErrBadGateway, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNoContent {
		return Envelope[T]{Success: true, Code: http.StatusNoContent, Message: "No content"}, nil
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return env, fmt.Errorf("%w: read body: %v", httpx.ErrBadGateway, err)
	}
	if !strings.Contains(res.Header.Get("Content-Type"), "application/json") {
		text := strings.TrimSpace(string(raw))
		if text == "" {
			text = fmt.Sprintf("server returned %d", res.StatusCode)
		}
		return env, &ResponseError{Status: res.StatusCode, Message: text}
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, &ResponseError{Status: res.StatusCode, Message: fmt.Sprintf("cannot parse response (%v)", err)}
	}
	if !env.Success || res.StatusCode < 200 || res.StatusCode > 299 {
		message := env.Message
		if message == "" {
			message = fmt.Sprintf("request failed with status %d", res.StatusCode)
		}
		return env, &ResponseError{Status: res.StatusCode, Message: message, Errors: env.Errors}
	}
	return env, nil
}

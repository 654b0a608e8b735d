// Package proxy relays browser calls under /api/backend to the upstream HR API
// with the session's bearer token attached.
package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pcr-hr/hr-portal/internal/auth"
	"github.com/pcr-hr/hr-portal/internal/platform/httpx"
)

const (
	// Prefix is the path prefix stripped before forwarding.
	Prefix = "/api/backend"
	// OverrideHeader selects a different upstream base URL for one request.
	OverrideHeader = "X-Backend-Base-Url"
)

// TokenAcquirer yields a usable access token for a session.
type TokenAcquirer interface {
	AcquireValidToken(ctx context.Context, sessionID string) (string, error)
}

// Observer receives proxied request outcomes.
type Observer interface {
	ObserveProxy(outcome string, status int)
}

// Handler forwards requests to the upstream API.
type Handler struct {
	tokens   TokenAcquirer
	baseURL  string
	client   *http.Client
	logger   *slog.Logger
	observer Observer
}

// Option customises a Handler.
type Option func(*Handler)

// WithTransport replaces the upstream round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(h *Handler) {
		if rt != nil {
			h.client.Transport = rt
		}
	}
}

// WithObserver registers an outcome observer.
func WithObserver(obs Observer) Option {
	return func(h *Handler) {
		h.observer = obs
	}
}

// NewHandler constructs the proxy handler for the given default upstream.
func NewHandler(tokens TokenAcquirer, baseURL string, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		tokens:  tokens,
		baseURL: baseURL,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type failureBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type unavailableBody struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Detail   string `json:"detail"`
	Upstream string `json:"upstream"`
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		w.Header().Set("Allow", "GET, POST, PUT, PATCH, DELETE")
		fail(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		return
	}

	token, err := h.tokens.AcquireValidToken(r.Context(), auth.SessionIDFromContext(r.Context()))
	if err != nil {
		if !errors.Is(err, auth.ErrUnauthorized) {
			h.logger.Error("acquire access token", slog.Any("error", err))
		}
		h.observe("unauthorized", http.StatusUnauthorized)
		fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	base := h.baseURL
	if override := r.Header.Get(OverrideHeader); override != "" {
		if !validBaseURL(override) {
			h.observe("bad_override", http.StatusBadRequest)
			fail(w, http.StatusBadRequest, "Invalid upstream override")
			return
		}
		base = override
	}
	target, err := TargetURL(base, r.URL)
	if err != nil {
		h.observe("bad_override", http.StatusBadRequest)
		fail(w, http.StatusBadRequest, "Invalid upstream override")
		return
	}

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}
	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		h.unavailable(w, target, err)
		return
	}
	outReq.Header = r.Header.Clone()
	outReq.Header.Set("Authorization", "Bearer "+token)
	outReq.Header.Del(OverrideHeader)
	outReq.Host = outReq.URL.Host
	if body != nil {
		outReq.ContentLength = r.ContentLength
	}

	res, err := h.client.Do(outReq)
	if err != nil {
		h.unavailable(w, target, err)
		return
	}
	defer res.Body.Close()

	header := w.Header()
	for key, values := range res.Header {
		if strings.EqualFold(key, "Transfer-Encoding") {
			continue
		}
		header[key] = append([]string(nil), values...)
	}
	w.WriteHeader(res.StatusCode)
	h.observe("relayed", res.StatusCode)
	if err := copyAndFlush(w, res.Body); err != nil {
		h.logger.Warn("relay upstream body", slog.String("upstream", target), slog.Any("error", err))
	}
}

// TargetURL joins the base with the request path minus the proxy prefix and
// the original query string.
func TargetURL(base string, in *url.URL) (string, error) {
	if _, err := url.Parse(base); err != nil {
		return "", err
	}
	path := strings.TrimPrefix(in.EscapedPath(), Prefix)
	target := strings.TrimRight(base, "/") + path
	if in.RawQuery != "" {
		target += "?" + in.RawQuery
	}
	return target, nil
}

func (h *Handler) unavailable(w http.ResponseWriter, target string, err error) {
	h.logger.Error("upstream request failed", slog.String("upstream", target), slog.Any("error", err))
	h.observe("unavailable", http.StatusBadGateway)
	httpx.JSON(w, http.StatusBadGateway, unavailableBody{
		Success:  false,
		Message:  "Upstream service unavailable",
		Detail:   err.Error(),
		Upstream: target,
	})
}

func (h *Handler) observe(outcome string, status int) {
	if h.observer != nil {
		h.observer.ObserveProxy(outcome, status)
	}
}

func fail(w http.ResponseWriter, status int, message string) {
	httpx.JSON(w, status, failureBody{Success: false, Message: message})
}

func validBaseURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func copyAndFlush(w http.ResponseWriter, src io.Reader) error {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

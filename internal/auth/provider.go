package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const defaultTokenLifetime = time.Hour

// ProviderConfig describes the OpenID Connect client registration.
type ProviderConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Provider talks to the Keycloak realm discovered from the issuer.
type Provider struct {
	cfg        ProviderConfig
	oauth      *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	endSession string
	client     *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// ProviderOption customises a Provider.
type ProviderOption func(*Provider)

// WithHTTPClient overrides the HTTP client used for discovery, key and token
// requests.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		if client != nil {
			p.client = client
		}
	}
}

// WithProviderClock overrides the clock used for expiry timestamps and ID
// token validation.
func WithProviderClock(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProvider discovers the issuer's endpoints and signing keys.
func NewProvider(ctx context.Context, cfg ProviderConfig, logger *slog.Logger, opts ...ProviderOption) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	cfg.Issuer = strings.TrimRight(cfg.Issuer, "/")
	p := &Provider{cfg: cfg, client: http.DefaultClient, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	// The remote key set keeps this context for later key rotations.
	discoveryCtx := oidc.ClientContext(context.WithoutCancel(ctx), p.client)
	provider, err := oidc.NewProvider(discoveryCtx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("auth: discover %s: %w", cfg.Issuer, err)
	}
	endpoint := provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	p.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     endpoint,
		Scopes:       cfg.Scopes,
	}
	p.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID, Now: p.now})

	var meta struct {
		EndSession string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&meta); err == nil {
		p.endSession = meta.EndSession
	}
	if p.endSession == "" {
		p.endSession = cfg.Issuer + "/protocol/openid-connect/logout"
	}
	return p, nil
}

// AuthCodeURL builds the authorization redirect with a PKCE S256 challenge.
func (p *Provider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code for a token record and the user
// profile carried in the verified ID token.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (TokenRecord, UserInfo, error) {
	ctx = oidc.ClientContext(ctx, p.client)
	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return TokenRecord{}, UserInfo{}, fmt.Errorf("auth: exchange code: %w", err)
	}
	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken == "" {
		return TokenRecord{}, UserInfo{}, ErrIDTokenMissing
	}
	user, err := p.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return TokenRecord{}, UserInfo{}, err
	}
	return p.record(tok, rawIDToken), user, nil
}

// VerifyIDToken checks the signature, issuer, audience and expiry of an ID
// token and returns its profile claims.
func (p *Provider) VerifyIDToken(ctx context.Context, rawIDToken string) (UserInfo, error) {
	idToken, err := p.verifier.Verify(oidc.ClientContext(ctx, p.client), rawIDToken)
	if err != nil {
		return UserInfo{}, fmt.Errorf("%w: %v", ErrIDTokenInvalid, err)
	}
	var claims struct {
		Name              string `json:"name"`
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return UserInfo{}, fmt.Errorf("%w: %v", ErrIDTokenInvalid, err)
	}
	return UserInfo{
		ID:       idToken.Subject,
		Name:     claims.Name,
		Email:    claims.Email,
		Username: claims.PreferredUsername,
	}, nil
}

// Refresh runs a single refresh_token grant. It never returns an error;
// failures are recorded on the returned record so callers fail closed.
func (p *Provider) Refresh(ctx context.Context, rec TokenRecord) TokenRecord {
	if rec.RefreshToken == "" {
		rec.Error = ErrorMissingRefreshToken
		return rec
	}
	ctx = oidc.ClientContext(ctx, p.client)
	tok, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: rec.RefreshToken}).Token()
	if err != nil {
		p.logger.Warn("token refresh failed", slog.Any("error", fmt.Errorf("%w: %v", ErrRefreshFailed, err)))
		rec.AccessToken = ""
		rec.Error = ErrorRefreshFailed
		return rec
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		idToken = rec.IDToken
	}
	next := p.record(tok, idToken)
	if next.RefreshToken == "" {
		next.RefreshToken = rec.RefreshToken
	}
	return next
}

// LogoutURL returns the end-session redirect for the given ID token.
func (p *Provider) LogoutURL(idToken, postLogoutRedirect string) string {
	q := url.Values{}
	if idToken != "" {
		q.Set("id_token_hint", idToken)
	}
	if postLogoutRedirect != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirect)
	}
	if len(q) == 0 {
		return p.endSession
	}
	return p.endSession + "?" + q.Encode()
}

func (p *Provider) record(tok *oauth2.Token, idToken string) TokenRecord {
	return TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      idToken,
		ExpiresAt:    p.now().Add(tokenLifetime(tok)).UnixMilli(),
	}
}

// tokenLifetime reads expires_in from the raw response. A missing or
// non-positive value means an hour.
func tokenLifetime(tok *oauth2.Token) time.Duration {
	var seconds float64
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		seconds = v
	case string:
		seconds, _ = strconv.ParseFloat(v, 64)
	}
	if seconds <= 0 {
		return defaultTokenLifetime
	}
	return time.Duration(seconds * float64(time.Second))
}

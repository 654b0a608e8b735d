// Package authtest runs an in-process OpenID Connect identity provider that
// signs ID tokens with an RSA key published on its JWKS endpoint.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const keyID = "test-key"

// IdentityProvider is a realm served by an httptest server. Its issuer is
// the server URL followed by /realms/hr.
type IdentityProvider struct {
	Server   *httptest.Server
	Issuer   string
	ClientID string

	key     *rsa.PrivateKey
	mu      sync.Mutex
	handler http.HandlerFunc
}

// NewIdentityProvider starts a realm for clientID. The server stops when the
// test ends. Until HandleToken is called the token endpoint answers every
// grant with fresh tokens for subject u-1.
func NewIdentityProvider(t testing.TB, clientID string) *IdentityProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate signing key: %v", err)
	}
	idp := &IdentityProvider{ClientID: clientID, key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/realms/hr/.well-known/openid-configuration", idp.serveDiscovery)
	mux.HandleFunc("/realms/hr/protocol/openid-connect/certs", idp.serveKeys)
	mux.HandleFunc("/realms/hr/protocol/openid-connect/token", idp.serveToken)
	idp.Server = httptest.NewServer(mux)
	idp.Issuer = idp.Server.URL + "/realms/hr"
	t.Cleanup(idp.Server.Close)
	return idp
}

// Client returns the HTTP client configured for the server.
func (idp *IdentityProvider) Client() *http.Client {
	return idp.Server.Client()
}

// HandleToken replaces the token endpoint handler.
func (idp *IdentityProvider) HandleToken(h http.HandlerFunc) {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	idp.handler = h
}

// SignIDToken signs claims with the realm key. iss, aud, iat and exp are
// filled in when absent; exp defaults to an hour from now.
func (idp *IdentityProvider) SignIDToken(t testing.TB, claims map[string]any) string {
	t.Helper()
	signed, err := sign(idp.key, idp.withDefaults(claims))
	if err != nil {
		t.Fatalf("sign id token: %v", err)
	}
	return signed
}

// ForgeIDToken signs claims with a key the realm does not publish.
func (idp *IdentityProvider) ForgeIDToken(t testing.TB, claims map[string]any) string {
	t.Helper()
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate forged key: %v", err)
	}
	signed, err := sign(other, idp.withDefaults(claims))
	if err != nil {
		t.Fatalf("sign forged id token: %v", err)
	}
	return signed
}

func (idp *IdentityProvider) withDefaults(claims map[string]any) jwt.MapClaims {
	now := time.Now()
	out := jwt.MapClaims{
		"iss": idp.Issuer,
		"aud": idp.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		out[k] = v
	}
	return out
}

func sign(key *rsa.PrivateKey, claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = keyID
	return token.SignedString(key)
}

func (idp *IdentityProvider) serveDiscovery(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, map[string]any{
		"issuer":                                idp.Issuer,
		"authorization_endpoint":                idp.Issuer + "/protocol/openid-connect/auth",
		"token_endpoint":                        idp.Issuer + "/protocol/openid-connect/token",
		"jwks_uri":                              idp.Issuer + "/protocol/openid-connect/certs",
		"userinfo_endpoint":                     idp.Issuer + "/protocol/openid-connect/userinfo",
		"end_session_endpoint":                  idp.Issuer + "/protocol/openid-connect/logout",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (idp *IdentityProvider) serveKeys(w http.ResponseWriter, _ *http.Request) {
	pub := idp.key.PublicKey
	WriteJSON(w, map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": keyID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (idp *IdentityProvider) serveToken(w http.ResponseWriter, r *http.Request) {
	idp.mu.Lock()
	h := idp.handler
	idp.mu.Unlock()
	if h != nil {
		h(w, r)
		return
	}
	idToken, err := sign(idp.key, idp.withDefaults(map[string]any{"sub": "u-1"}))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	WriteJSON(w, map[string]any{
		"access_token":  "access",
		"refresh_token": "refresh",
		"token_type":    "Bearer",
		"expires_in":    300,
		"id_token":      idToken,
	})
}

// WriteJSON encodes v as an application/json response.
func WriteJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcr-hr/hr-portal/internal/auth"
	"github.com/pcr-hr/hr-portal/internal/auth/authtest"
)

type authFixture struct {
	router   http.Handler
	sessions *auth.SessionManager
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	idp := authtest.NewIdentityProvider(t, "portal")
	idp.HandleToken(func(w http.ResponseWriter, r *http.Request) {
		authtest.WriteJSON(w, map[string]any{
			"access_token":  "access",
			"refresh_token": "refresh",
			"token_type":    "Bearer",
			"id_token":      idp.SignIDToken(t, map[string]any{"sub": "u-9", "preferred_username": "budi"}),
			"expires_in":    300,
		})
	})

	sessions := newSessionManager(t)
	provider, err := auth.NewProvider(context.Background(), auth.ProviderConfig{Issuer: idp.Issuer, ClientID: "portal", RedirectURL: "http://portal/auth/callback"}, nil, auth.WithHTTPClient(idp.Client()))
	require.NoError(t, err)
	handler := auth.NewHandler(nil, provider, sessions, auth.NewCSRFManager("csrfsecret"), "http://portal")

	r := chi.NewRouter()
	r.Use(sessions.Middleware)
	r.Route("/auth", handler.MountRoutes)
	return authFixture{router: r, sessions: sessions}
}

func (f authFixture) do(t *testing.T, method, target string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestLoginCallbackFlow(t *testing.T) {
	f := newAuthFixture(t)

	login := f.do(t, http.MethodGet, "/auth/login?return_to=/masterdata/departments", nil)
	require.Equal(t, http.StatusFound, login.Code)
	location, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)
	cookies := login.Result().Cookies()
	require.NotEmpty(t, cookies)

	callback := f.do(t, http.MethodGet, "/auth/callback?code=abc&state="+state, cookies)
	require.Equal(t, http.StatusFound, callback.Code)
	assert.Equal(t, "/masterdata/departments", callback.Header().Get("Location"))

	current := f.do(t, http.MethodGet, "/auth/session", cookies)
	require.Equal(t, http.StatusOK, current.Code)
	var body struct {
		Data struct {
			Authenticated bool `json:"authenticated"`
			User          struct {
				Username string `json:"username"`
			} `json:"user"`
			CSRFToken string `json:"csrf_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(current.Body.Bytes(), &body))
	assert.True(t, body.Data.Authenticated)
	assert.Equal(t, "budi", body.Data.User.Username)
	assert.NotEmpty(t, body.Data.CSRFToken)
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	f := newAuthFixture(t)

	login := f.do(t, http.MethodGet, "/auth/login", nil)
	callback := f.do(t, http.MethodGet, "/auth/callback?code=abc&state=forged", login.Result().Cookies())
	assert.Equal(t, http.StatusBadRequest, callback.Code)
}

func TestSessionEndpointAnonymous(t *testing.T) {
	f := newAuthFixture(t)

	current := f.do(t, http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusOK, current.Code)
	assert.Contains(t, current.Body.String(), `"authenticated":false`)
}

func TestLogoutRedirectsToIdentityProvider(t *testing.T) {
	f := newAuthFixture(t)

	res := f.do(t, http.MethodGet, "/auth/logout", nil)
	require.Equal(t, http.StatusFound, res.Code)
	location, err := url.Parse(res.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/realms/hr/protocol/openid-connect/logout", location.Path)
	assert.Equal(t, "http://portal/login", location.Query().Get("post_logout_redirect_uri"))
}

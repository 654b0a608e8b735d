package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/pcr-hr/hr-portal/internal/platform/httpx"
)

const (
	stateSessionKey    = "oauth_state"
	verifierSessionKey = "oauth_verifier"
	returnToSessionKey = "oauth_return_to"
)

// Handler wires HTTP endpoints for the login, logout and session flows.
type Handler struct {
	logger         *slog.Logger
	provider       *Provider
	sessionManager *SessionManager
	csrfManager    *CSRFManager
	appBaseURL     string
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, provider *Provider, sessions *SessionManager, csrf *CSRFManager, appBaseURL string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		provider:       provider,
		sessionManager: sessions,
		csrfManager:    csrf,
		appBaseURL:     appBaseURL,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.handleLogin)
	r.Get("/callback", h.handleCallback)
	r.Get("/logout", h.handleLogout)
	r.Post("/logout", h.handleLogout)
	r.Get("/session", h.handleSession)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()
	sess.Set(stateSessionKey, state)
	sess.Set(verifierSessionKey, verifier)
	if returnTo := r.URL.Query().Get("return_to"); isLocalPath(returnTo) {
		sess.Set(returnToSessionKey, returnTo)
	}
	if err := h.sessionManager.Commit(r.Context(), w, sess); err != nil {
		h.logger.Error("commit session", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, h.provider.AuthCodeURL(state, verifier), http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	q := r.URL.Query()
	if idpErr := q.Get("error"); idpErr != "" {
		h.logger.Warn("identity provider rejected login", slog.String("error", idpErr))
		httpx.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	expected := sess.Get(stateSessionKey)
	if expected == "" || q.Get("state") != expected {
		h.logger.Warn("login callback rejected", slog.Any("error", ErrStateMismatch))
		httpx.Fail(w, http.StatusBadRequest, ErrStateMismatch.Error())
		return
	}
	rec, user, err := h.provider.Exchange(r.Context(), q.Get("code"), sess.Get(verifierSessionKey))
	if err != nil {
		h.logger.Warn("code exchange failed", slog.Any("error", err))
		httpx.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	returnTo := sess.Get(returnToSessionKey)
	sess.Delete(stateSessionKey)
	sess.Delete(verifierSessionKey)
	sess.Delete(returnToSessionKey)
	sess.SetToken(rec)
	sess.SetUser(user)
	if _, err := h.csrfManager.EnsureToken(sess); err != nil {
		h.logger.Error("csrf token", slog.Any("error", err))
	}
	if err := h.sessionManager.Commit(r.Context(), w, sess); err != nil {
		h.logger.Error("commit session", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.logger.Info("user signed in", slog.String("user", user.Username))
	if returnTo == "" {
		returnTo = "/"
	}
	http.Redirect(w, r, returnTo, http.StatusFound)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	var idToken string
	if sess != nil {
		idToken = sess.Token().IDToken
		h.sessionManager.Destroy(sess)
		if err := h.sessionManager.Commit(r.Context(), w, sess); err != nil {
			h.logger.Error("destroy session", slog.Any("error", err))
		}
	}
	http.Redirect(w, r, h.provider.LogoutURL(idToken, h.appBaseURL+"/login"), http.StatusFound)
}

type sessionView struct {
	Authenticated bool      `json:"authenticated"`
	User          *UserInfo `json:"user,omitempty"`
	Error         string    `json:"error,omitempty"`
	CSRFToken     string    `json:"csrf_token,omitempty"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if !sess.Authenticated() {
		httpx.OK(w, "OK", sessionView{}, nil)
		return
	}
	rec := sess.Token()
	user := sess.User()
	view := sessionView{
		Authenticated: rec.Error == "",
		User:          &user,
		Error:         rec.Error,
	}
	if view.Authenticated {
		token, err := h.csrfManager.EnsureToken(sess)
		if err == nil {
			view.CSRFToken = token
			if sess.dirty {
				if err := h.sessionManager.Save(r.Context(), sess); err != nil {
					h.logger.Error("save session", slog.Any("error", err))
				}
			}
		}
	}
	httpx.OK(w, "OK", view, nil)
}

func isLocalPath(p string) bool {
	return len(p) > 1 && p[0] == '/' && p[1] != '/' && p[1] != '\\'
}

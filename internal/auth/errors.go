package auth

import (
	"errors"

	"github.com/pcr-hr/hr-portal/internal/platform/httpx"
)

var (
	// ErrUnauthorized indicates no valid or refreshable token is available.
	ErrUnauthorized = httpx.ErrUnauthorized
	// ErrRefreshFailed indicates the refresh token exchange failed.
	ErrRefreshFailed = errors.New("refresh access token failed")
	// ErrIDTokenMissing indicates the token response carried no ID token.
	ErrIDTokenMissing = errors.New("id token missing from token response")
	// ErrIDTokenInvalid indicates the ID token failed verification.
	ErrIDTokenInvalid = errors.New("id token invalid")
	// ErrSessionNotFound indicates the session ID is unknown to the store.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStateMismatch occurs when the login callback state does not match.
	ErrStateMismatch = errors.New("oauth state mismatch")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

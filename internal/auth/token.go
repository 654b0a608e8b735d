package auth

import "time"

// ExpiryBuffer is the safety margin before expiry at which an access token is
// considered stale.
const ExpiryBuffer = 60 * time.Second

// Session error markers recorded on the token record.
const (
	ErrorRefreshFailed       = "RefreshAccessTokenError"
	ErrorMissingRefreshToken = "MissingRefreshToken"
)

// TokenRecord is the identity provider token set attached to a session.
type TokenRecord struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	// ExpiresAt is the access token expiry in epoch milliseconds.
	ExpiresAt int64  `json:"expires_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Stale reports whether now falls inside the expiry buffer. A record without
// an expiry is never stale.
func (t TokenRecord) Stale(now time.Time) bool {
	if t.ExpiresAt == 0 {
		return false
	}
	return now.UnixMilli() > t.ExpiresAt-ExpiryBuffer.Milliseconds()
}

// Usable reports whether the access token may be attached to a request.
func (t TokenRecord) Usable(now time.Time) bool {
	return t.AccessToken != "" && t.Error == "" && !t.Stale(now)
}

// Refreshable reports whether a refresh cycle may be attempted. Errored
// records fail closed until the user signs in again.
func (t TokenRecord) Refreshable() bool {
	return t.AccessToken != "" && t.Error == ""
}

// UserInfo holds the profile claims taken from the ID token.
type UserInfo struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// refreshLockTTL bounds how long a crashed holder blocks other refreshes.
	refreshLockTTL      = 30 * time.Second
	sessionWriteRetries = 5
)

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionManager orchestrates cookie based sessions backed by Redis. Each
// write is a read-modify-write of the whole document under WATCH, so readers
// never observe a partially updated token record and the token written by a
// refresh is not lost to a concurrent write of other fields.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session holds per-browser session data.
type Session struct {
	ID         string
	values     map[string]string
	token      TokenRecord
	user       UserInfo
	isNew      bool
	dirty      bool
	tokenDirty bool
	destroyed  bool
}

type sessionPayload struct {
	Values map[string]string `json:"values"`
	Token  TokenRecord       `json:"token"`
	User   UserInfo          `json:"user"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load loads the session referenced by the request cookie or starts a new one.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}
	sess, err := sm.Get(ctx, cookie.Value)
	if errors.Is(err, ErrSessionNotFound) {
		return sm.newSession(), nil
	}
	return sess, err
}

// Get fetches a stored session by ID.
func (sm *SessionManager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("auth: load session: %w", err)
	}
	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("auth: decode session: %w", err)
	}
	sess := &Session{
		ID:     id,
		values: stored.Values,
		token:  stored.Token,
		user:   stored.User,
	}
	if sess.values == nil {
		sess.values = make(map[string]string)
	}
	return sess, nil
}

// Save persists the session document, keeping the configured TTL. The stored
// token record is only replaced when SetToken was called on sess, so a token
// refreshed elsewhere since sess was loaded survives.
func (sm *SessionManager) Save(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	err := sm.modify(ctx, sess.ID, func(stored *sessionPayload, exists bool) error {
		stored.Values = sess.values
		stored.User = sess.user
		if sess.tokenDirty || !exists {
			stored.Token = sess.token
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("auth: save session: %w", err)
	}
	sess.dirty = false
	sess.tokenDirty = false
	sess.isNew = false
	return nil
}

// UpdateToken replaces the token record of a stored session and leaves the
// other fields as they are in Redis.
func (sm *SessionManager) UpdateToken(ctx context.Context, id string, rec TokenRecord) error {
	err := sm.modify(ctx, id, func(stored *sessionPayload, exists bool) error {
		if !exists {
			return ErrSessionNotFound
		}
		stored.Token = rec
		return nil
	})
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("auth: update token: %w", err)
	}
	return err
}

// LockRefresh takes the refresh lock of a session, shared by every process
// using the same Redis. acquired is false when another holder has it.
func (sm *SessionManager) LockRefresh(ctx context.Context, id string) (release func(), acquired bool, err error) {
	key := sm.redisKey(id) + ":refresh"
	owner := uuid.NewString()
	ok, err := sm.client.SetNX(ctx, key, owner, refreshLockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("auth: lock refresh: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release = func() {
		// A failed release is left to the TTL.
		_ = releaseLockScript.Run(context.WithoutCancel(ctx), sm.client, []string{key}, owner).Err()
	}
	return release, true, nil
}

func (sm *SessionManager) modify(ctx context.Context, id string, mutate func(stored *sessionPayload, exists bool) error) error {
	key := sm.redisKey(id)
	txf := func(tx *redis.Tx) error {
		var stored sessionPayload
		exists := true
		payload, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(payload, &stored); err != nil {
				return fmt.Errorf("decode session: %w", err)
			}
		}
		if err := mutate(&stored, exists); err != nil {
			return err
		}
		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, sm.ttl)
			return nil
		})
		return err
	}
	for attempt := 0; attempt < sessionWriteRetries; attempt++ {
		err := sm.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

// Commit persists the session and writes cookie headers as needed.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if err := sm.client.Del(ctx, sm.redisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteLaxMode,
		})
		return nil
	}

	if sess.dirty || sess.isNew {
		if err := sm.Save(ctx, sess); err != nil {
			return err
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		// Lax so the identity provider redirect back to /auth/callback carries the cookie.
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sm.ttl),
	})
	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Middleware loads the session into the request context. Sessions are only
// written back by handlers that change them.
func (sm *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.Load(r.Context(), r)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
	})
}

// Session helpers

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	if s.values == nil {
		return ""
	}
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if s.values == nil {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Token returns a copy of the session token record.
func (s *Session) Token() TokenRecord {
	return s.token
}

// SetToken replaces the token record.
func (s *Session) SetToken(rec TokenRecord) {
	s.token = rec
	s.dirty = true
	s.tokenDirty = true
}

// User returns the signed-in user profile.
func (s *Session) User() UserInfo {
	return s.user
}

// SetUser associates the session with a user profile.
func (s *Session) SetUser(u UserInfo) {
	s.user = u
	s.dirty = true
}

// Authenticated reports whether the session ever completed a login.
func (s *Session) Authenticated() bool {
	return s != nil && !s.isNew && (s.token.AccessToken != "" || s.token.Error != "")
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:     sm.generateSessionID(),
		values: make(map[string]string),
		isNew:  true,
		dirty:  true,
	}
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}

func (sm *SessionManager) generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	if len(sm.secret) > 0 {
		for i := range b {
			b[i] ^= sm.secret[i%len(sm.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

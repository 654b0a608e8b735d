package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// SessionStore is the persistence the acquirer needs.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	UpdateToken(ctx context.Context, id string, rec TokenRecord) error
	LockRefresh(ctx context.Context, id string) (release func(), acquired bool, err error)
}

// Refresher exchanges a refresh token for a new token record.
type Refresher interface {
	Refresh(ctx context.Context, rec TokenRecord) TokenRecord
}

// RefreshObserver receives refresh outcomes, typically for metrics.
type RefreshObserver interface {
	ObserveRefresh(outcome string)
}

// Refresh outcomes reported to the observer.
const (
	RefreshSucceeded = "success"
	RefreshFailed    = "failure"
	RefreshShared    = "shared"
)

const (
	defaultLockPoll = 50 * time.Millisecond
	defaultLockWait = 10 * time.Second
)

// Acquirer yields a usable access token for a session, refreshing it when
// stale. At most one refresh runs per session at a time: callers in one
// process share a flight, and flights of different processes take the
// store's refresh lock.
type Acquirer struct {
	store     SessionStore
	refresher Refresher
	logger    *slog.Logger
	observer  RefreshObserver
	now       func() time.Time
	group     singleflight.Group
	lockPoll  time.Duration
	lockWait  time.Duration
}

// AcquirerOption customises an Acquirer.
type AcquirerOption func(*Acquirer)

// WithClock overrides the acquirer clock.
func WithClock(now func() time.Time) AcquirerOption {
	return func(a *Acquirer) {
		if now != nil {
			a.now = now
		}
	}
}

// WithRefreshObserver registers an observer for refresh outcomes.
func WithRefreshObserver(obs RefreshObserver) AcquirerOption {
	return func(a *Acquirer) {
		a.observer = obs
	}
}

// WithLockPolling sets how often a flight re-checks a session whose refresh
// lock is held elsewhere, and how long it waits before giving up.
func WithLockPolling(interval, timeout time.Duration) AcquirerOption {
	return func(a *Acquirer) {
		if interval > 0 {
			a.lockPoll = interval
		}
		if timeout > 0 {
			a.lockWait = timeout
		}
	}
}

// NewAcquirer constructs an Acquirer.
func NewAcquirer(store SessionStore, refresher Refresher, logger *slog.Logger, opts ...AcquirerOption) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Acquirer{
		store:     store,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
		lockPoll:  defaultLockPoll,
		lockWait:  defaultLockWait,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AcquireValidToken returns an access token that is usable right now.
func (a *Acquirer) AcquireValidToken(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrUnauthorized
	}
	sess, err := a.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return "", ErrUnauthorized
		}
		return "", err
	}
	rec := sess.Token()
	if rec.Usable(a.now()) {
		return rec.AccessToken, nil
	}
	if !rec.Refreshable() {
		return "", ErrUnauthorized
	}

	val, err, shared := a.refreshOnce(ctx, sessionID)
	if shared {
		a.observe(RefreshShared)
	}
	if err != nil {
		return "", err
	}
	refreshed := val.(TokenRecord)
	if !refreshed.Usable(a.now()) {
		return "", ErrUnauthorized
	}
	return refreshed.AccessToken, nil
}

func (a *Acquirer) refreshOnce(ctx context.Context, sessionID string) (interface{}, error, bool) {
	// The refresh outlives any single caller so waiters are not failed by
	// the first caller's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	resultChan := a.group.DoChan(sessionID, func() (interface{}, error) {
		return a.refresh(flightCtx, sessionID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

func (a *Acquirer) refresh(ctx context.Context, sessionID string) (TokenRecord, error) {
	deadline := time.NewTimer(a.lockWait)
	defer deadline.Stop()
	for {
		current, err := a.load(ctx, sessionID)
		if err != nil {
			return TokenRecord{}, err
		}
		// Another flight may have finished between the caller's read and ours.
		if current.Usable(a.now()) || !current.Refreshable() {
			return current, nil
		}
		release, acquired, err := a.store.LockRefresh(ctx, sessionID)
		if err != nil {
			return TokenRecord{}, err
		}
		if acquired {
			defer release()
			return a.refreshLocked(ctx, sessionID)
		}
		select {
		case <-deadline.C:
			a.logger.Warn("refresh lock wait timed out", slog.String("session_id", sessionID))
			return current, nil
		case <-time.After(a.lockPoll):
		}
	}
}

func (a *Acquirer) refreshLocked(ctx context.Context, sessionID string) (TokenRecord, error) {
	// The previous lock holder may have stored a fresh token already.
	current, err := a.load(ctx, sessionID)
	if err != nil {
		return TokenRecord{}, err
	}
	if current.Usable(a.now()) || !current.Refreshable() {
		return current, nil
	}

	next := a.refresher.Refresh(ctx, current)
	if next.Error != "" {
		a.observe(RefreshFailed)
		a.logger.Warn("access token refresh failed",
			slog.String("session_id", sessionID),
			slog.String("error", next.Error))
	} else {
		a.observe(RefreshSucceeded)
	}
	if err := a.store.UpdateToken(ctx, sessionID, next); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return TokenRecord{}, ErrUnauthorized
		}
		return TokenRecord{}, err
	}
	return a.load(ctx, sessionID)
}

func (a *Acquirer) load(ctx context.Context, sessionID string) (TokenRecord, error) {
	sess, err := a.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return TokenRecord{}, ErrUnauthorized
		}
		return TokenRecord{}, err
	}
	return sess.Token(), nil
}

func (a *Acquirer) observe(outcome string) {
	if a.observer != nil {
		a.observer.ObserveRefresh(outcome)
	}
}

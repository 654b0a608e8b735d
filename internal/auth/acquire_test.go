package auth_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcr-hr/hr-portal/internal/auth"
	_ "github.com/pcr-hr/hr-portal/testing"
)

type countingRefresher struct {
	calls   atomic.Int32
	release chan struct{}
	result  func(auth.TokenRecord) auth.TokenRecord
}

func (r *countingRefresher) Refresh(ctx context.Context, rec auth.TokenRecord) auth.TokenRecord {
	r.calls.Add(1)
	if r.release != nil {
		<-r.release
	}
	return r.result(rec)
}

func newSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return auth.NewSessionManager(client, "test_session", "secret", time.Hour, false)
}

func seedSession(t *testing.T, sm *auth.SessionManager, rec auth.TokenRecord) string {
	t.Helper()
	sess, err := sm.Load(context.Background(), httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	sess.SetToken(rec)
	require.NoError(t, sm.Save(context.Background(), sess))
	return sess.ID
}

func TestAcquireReturnsUsableTokenWithoutRefresh(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	sm := newSessionManager(t)
	id := seedSession(t, sm, auth.TokenRecord{AccessToken: "fresh", RefreshToken: "r", ExpiresAt: now.Add(10 * time.Minute).UnixMilli()})
	refresher := &countingRefresher{result: func(rec auth.TokenRecord) auth.TokenRecord { return rec }}

	acq := auth.NewAcquirer(sm, refresher, nil, auth.WithClock(func() time.Time { return now }))
	token, err := acq.AcquireValidToken(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	assert.Zero(t, refresher.calls.Load())
}

func TestAcquireCoalescesConcurrentRefreshes(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	sm := newSessionManager(t)
	id := seedSession(t, sm, auth.TokenRecord{AccessToken: "old", RefreshToken: "r1", ExpiresAt: now.Add(30 * time.Second).UnixMilli()})
	refresher := &countingRefresher{
		release: make(chan struct{}),
		result: func(rec auth.TokenRecord) auth.TokenRecord {
			return auth.TokenRecord{AccessToken: "new", RefreshToken: "r2", IDToken: rec.IDToken, ExpiresAt: now.Add(5 * time.Minute).UnixMilli()}
		},
	}
	acq := auth.NewAcquirer(sm, refresher, nil, auth.WithClock(func() time.Time { return now }))

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = acq.AcquireValidToken(context.Background(), id)
		}(i)
	}
	require.Eventually(t, func() bool { return refresher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(refresher.release)
	wg.Wait()

	assert.Equal(t, int32(1), refresher.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "new", tokens[i])
	}

	stored, err := sm.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "r2", stored.Token().RefreshToken)
}

func TestAcquireFailedRefreshFailsClosed(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	sm := newSessionManager(t)
	id := seedSession(t, sm, auth.TokenRecord{AccessToken: "old", RefreshToken: "r1", ExpiresAt: now.UnixMilli()})
	refresher := &countingRefresher{result: func(rec auth.TokenRecord) auth.TokenRecord {
		rec.AccessToken = ""
		rec.Error = auth.ErrorRefreshFailed
		return rec
	}}
	acq := auth.NewAcquirer(sm, refresher, nil, auth.WithClock(func() time.Time { return now }))

	_, err := acq.AcquireValidToken(context.Background(), id)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	stored, err := sm.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, auth.ErrorRefreshFailed, stored.Token().Error)

	_, err = acq.AcquireValidToken(context.Background(), id)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	assert.Equal(t, int32(1), refresher.calls.Load(), "errored sessions must not refresh again")
}

func TestAcquireUnknownSession(t *testing.T) {
	sm := newSessionManager(t)
	acq := auth.NewAcquirer(sm, &countingRefresher{}, nil)

	_, err := acq.AcquireValidToken(context.Background(), "missing")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	_, err = acq.AcquireValidToken(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestAcquireRefreshesOnceAcrossAcquirers(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	sm := newSessionManager(t)
	id := seedSession(t, sm, auth.TokenRecord{AccessToken: "old", RefreshToken: "r1", ExpiresAt: now.UnixMilli()})
	refresher := &countingRefresher{
		release: make(chan struct{}),
		result: func(rec auth.TokenRecord) auth.TokenRecord {
			return auth.TokenRecord{AccessToken: "new", RefreshToken: "r2", ExpiresAt: now.Add(5 * time.Minute).UnixMilli()}
		},
	}
	clock := auth.WithClock(func() time.Time { return now })
	polling := auth.WithLockPolling(5*time.Millisecond, 5*time.Second)
	// Two acquirers stand in for two server processes sharing one Redis.
	web := auth.NewAcquirer(sm, refresher, nil, clock, polling)
	worker := auth.NewAcquirer(sm, refresher, nil, clock, polling)

	var wg sync.WaitGroup
	tokens := make([]string, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		tokens[0], errs[0] = web.AcquireValidToken(context.Background(), id)
	}()
	require.Eventually(t, func() bool { return refresher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	wg.Add(1)
	go func() {
		defer wg.Done()
		tokens[1], errs[1] = worker.AcquireValidToken(context.Background(), id)
	}()
	assert.Never(t, func() bool { return refresher.calls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	close(refresher.release)
	wg.Wait()

	assert.Equal(t, int32(1), refresher.calls.Load())
	for i := range tokens {
		require.NoError(t, errs[i])
		assert.Equal(t, "new", tokens[i])
	}
}

func TestAcquireRefreshKeepsFieldsWrittenMeanwhile(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	sm := newSessionManager(t)
	id := seedSession(t, sm, auth.TokenRecord{AccessToken: "old", RefreshToken: "r1", ExpiresAt: now.UnixMilli()})
	refresher := &countingRefresher{
		release: make(chan struct{}),
		result: func(rec auth.TokenRecord) auth.TokenRecord {
			return auth.TokenRecord{AccessToken: "new", RefreshToken: "r2", ExpiresAt: now.Add(5 * time.Minute).UnixMilli()}
		},
	}
	acq := auth.NewAcquirer(sm, refresher, nil, auth.WithClock(func() time.Time { return now }))

	done := make(chan error, 1)
	go func() {
		_, err := acq.AcquireValidToken(context.Background(), id)
		done <- err
	}()
	require.Eventually(t, func() bool { return refresher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// A concurrent request stores a CSRF token from its stale copy.
	stale, err := sm.Get(context.Background(), id)
	require.NoError(t, err)
	stale.Set(auth.CSRFSessionKey, "csrf-1")
	require.NoError(t, sm.Save(context.Background(), stale))

	close(refresher.release)
	require.NoError(t, <-done)

	// A later save from a copy loaded before the refresh keeps the new token.
	stale.Set("locale", "id")
	require.NoError(t, sm.Save(context.Background(), stale))

	stored, err := sm.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "csrf-1", stored.Get(auth.CSRFSessionKey))
	assert.Equal(t, "id", stored.Get("locale"))
	assert.Equal(t, "new", stored.Token().AccessToken)
	assert.Equal(t, "r2", stored.Token().RefreshToken)
}

func TestAcquireGivesUpWhenRefreshLockIsHeld(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	sm := newSessionManager(t)
	id := seedSession(t, sm, auth.TokenRecord{AccessToken: "old", RefreshToken: "r1", ExpiresAt: now.UnixMilli()})
	release, acquired, err := sm.LockRefresh(context.Background(), id)
	require.NoError(t, err)
	require.True(t, acquired)
	defer release()

	_, acquired, err = sm.LockRefresh(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, acquired)

	refresher := &countingRefresher{result: func(rec auth.TokenRecord) auth.TokenRecord { return rec }}
	acq := auth.NewAcquirer(sm, refresher, nil,
		auth.WithClock(func() time.Time { return now }),
		auth.WithLockPolling(5*time.Millisecond, 40*time.Millisecond))

	_, err = acq.AcquireValidToken(context.Background(), id)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	assert.Zero(t, refresher.calls.Load())
}

func TestUpdateTokenUnknownSession(t *testing.T) {
	sm := newSessionManager(t)
	err := sm.UpdateToken(context.Background(), "missing", auth.TokenRecord{AccessToken: "x"})
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

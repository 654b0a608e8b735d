package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVersioned(t *testing.T) (*Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "hrportal:test", time.Minute), mr
}

func TestBuildKeyFollowsVersion(t *testing.T) {
	c, _ := newTestVersioned(t)
	ctx := context.Background()

	first, err := c.BuildKey(ctx, "lookups", "active")
	require.NoError(t, err)
	assert.Equal(t, "hrportal:test:lookups:active:1", first)

	require.NoError(t, c.Bump(ctx))
	second, err := c.BuildKey(ctx, "lookups", "active")
	require.NoError(t, err)
	assert.Equal(t, "hrportal:test:lookups:active:2", second)
}

func TestFetchJSONCachesLoaderResult(t *testing.T) {
	c, mr := newTestVersioned(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"n": calls}, nil
	}

	var out map[string]int
	require.NoError(t, c.FetchJSON(ctx, "k", &out, loader))
	require.NoError(t, c.FetchJSON(ctx, "k", &out, loader))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, out["n"])
	assert.True(t, mr.Exists("k"))
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestFetchJSONDoesNotCacheErrors(t *testing.T) {
	c, mr := newTestVersioned(t)
	var out map[string]int
	err := c.FetchJSON(context.Background(), "k", &out, func(context.Context) (any, error) {
		return nil, errors.New("upstream down")
	})
	require.Error(t, err)
	assert.False(t, mr.Exists("k"))
}

func TestNilVersionedLoadsDirectly(t *testing.T) {
	var c *Versioned
	key, err := c.BuildKey(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a:b", key)

	var out []string
	require.NoError(t, c.FetchJSON(context.Background(), key, &out, func(context.Context) (any, error) {
		return []string{"x"}, nil
	}))
	assert.Equal(t, []string{"x"}, out)
	assert.NoError(t, c.Bump(context.Background()))
}

func TestListenForInvalidationAppliesNewerVersion(t *testing.T) {
	c, mr := newTestVersioned(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.ListenForInvalidation(ctx))
	mr.Publish(c.Channel(), "7")
	require.Eventually(t, func() bool {
		v, err := mr.Get(c.versionKey())
		return err == nil && v == "7"
	}, 2*time.Second, 10*time.Millisecond)
}

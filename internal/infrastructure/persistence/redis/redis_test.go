package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/application/query"
)

// newTestCache connects to REDIS_ADDR or skips. Each test gets its own
// key prefix.
func newTestCache(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())

	c := NewCacheFromClient(client, "test:"+t.Name()+":"+time.Now().Format("150405.000000")+":")
	t.Cleanup(func() {
		_, _ = c.DeleteByPattern(context.Background(), c.prefix+"*")
		_ = c.Close()
	})
	return c
}

func TestCache_Key(t *testing.T) {
	c := NewCacheFromClient(nil, "progress:")
	assert.Equal(t, "progress:snapshot:u1", c.Key(nsSnapshot, "u1"))
	assert.Equal(t, "progress:lock:user:u1", c.Key(nsLock, "u1"))
}

func TestSnapshotCache_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	sc := NewSnapshotCache(c, time.Minute, nil)
	ctx := context.Background()

	got, err := sc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	snap := &query.ProgressSnapshotDTO{UserID: "u1", TotalPoints: 320, Level: 2}
	require.NoError(t, sc.Set(ctx, snap))
	require.NoError(t, sc.Set(ctx, &query.ProgressSnapshotDTO{UserID: "u2"}))

	got, err = sc.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 320, got.TotalPoints)

	require.NoError(t, sc.Invalidate(ctx, "u1"))
	got, err = sc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, sc.InvalidateAll(ctx))
	got, err = sc.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUserLocker_Exclusive(t *testing.T) {
	c := newTestCache(t)
	l := NewUserLocker(c, LockConfig{TTL: 5 * time.Second, RetryInterval: 5 * time.Millisecond})
	ctx := context.Background()

	unlock, err := l.LockUser(ctx, "u1")
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.LockUser(short, "u1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := l.LockUser(ctx, "u2")
	require.NoError(t, err)
	other()

	unlock()
	unlock()

	again, err := l.LockUser(ctx, "u1")
	require.NoError(t, err)
	again()
}

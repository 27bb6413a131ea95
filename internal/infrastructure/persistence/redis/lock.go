package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/progress-engine/internal/application/command"
)

// Ensure interface is met.
var _ command.UserLocker = (*UserLocker)(nil)

// ErrLockNotHeld is returned when a lock expired before it was released.
var ErrLockNotHeld = errors.New("lock: not held")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockConfig configures UserLocker.
type LockConfig struct {
	// TTL - how long a lock survives a crashed holder.
	TTL time.Duration

	// RetryInterval - pause between acquisition attempts.
	RetryInterval time.Duration
}

// DefaultLockConfig returns defaults suited to ledger operations.
func DefaultLockConfig() LockConfig {
	return LockConfig{
		TTL:           30 * time.Second,
		RetryInterval: 25 * time.Millisecond,
	}
}

// UserLocker is a command.UserLocker shared by every process talking to the
// same Redis. It uses SET NX with a random token and a compare-and-delete
// release.
type UserLocker struct {
	cache  *Cache
	config LockConfig
}

// NewUserLocker creates a distributed per-user locker.
func NewUserLocker(cache *Cache, config LockConfig) *UserLocker {
	def := DefaultLockConfig()
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = def.RetryInterval
	}
	return &UserLocker{cache: cache, config: config}
}

// LockUser blocks until the user's lock is acquired or ctx is done.
func (l *UserLocker) LockUser(ctx context.Context, userID string) (func(), error) {
	key := l.cache.Key(nsLock, userID)
	token := uuid.NewString()

	ticker := time.NewTicker(l.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.cache.Client().SetNX(ctx, key, token, l.config.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock for %s: %w", userID, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The caller's ctx may already be cancelled; release regardless.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.release(rctx, key, token)
	}, nil
}

func (l *UserLocker) release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, l.cache.Client(), []string{key}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"

	"github.com/alem-hub/progress-engine/pkg/keylock"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// Infrastructure contracts the command handlers rely on.
// ══════════════════════════════════════════════════════════════════════════════

// TxManager runs fn inside one storage transaction. Repositories pick the
// transaction up from the context passed to fn.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserLocker serializes mutations of one user's progress. The returned
// unlock function is safe to call more than once.
type UserLocker interface {
	LockUser(ctx context.Context, userID string) (unlock func(), err error)
}

// LocalLocker is a UserLocker for a single process.
type LocalLocker struct {
	locks *keylock.KeyLock
}

// NewLocalLocker creates an in-process per-user locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: keylock.New()}
}

// LockUser blocks until the user's lock is held or ctx is done.
func (l *LocalLocker) LockUser(ctx context.Context, userID string) (func(), error) {
	return l.locks.Lock(ctx, "user:"+userID)
}

// PassthroughTx is a TxManager for stores without transactions.
type PassthroughTx struct{}

// WithinTx calls fn directly.
func (PassthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

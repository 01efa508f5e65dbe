// Package lock provides the per-key mutual exclusion that serializes
// competing attendance operations for the same user and state axis. The
// in-process Registry covers a single-instance deployment; RedisLocker is
// the advisory fallback for horizontally scaled ones. Either way the
// storage layer's uniqueness constraints remain the ultimate race breaker.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLockTimeout is returned when a lock could not be acquired within the
// bounded wait. Callers surface it as a concurrency conflict and retry
// after a short backoff.
var ErrLockTimeout = errors.New("operation lock acquisition timed out")

// Handle identifies one successful acquisition. Release requires the
// handle, so a lock can only be released by its holder.
type Handle struct {
	Key        string
	Holder     uuid.UUID
	AcquiredAt time.Time
}

// Locker is the serialization primitive the orchestrator depends on.
type Locker interface {
	// Acquire blocks until the key is free, the context is done, or the
	// bounded wait elapses.
	Acquire(ctx context.Context, key string) (*Handle, error)
	// Release frees the key. Releasing a handle twice is an error.
	Release(h *Handle) error
}

// Key builds the canonical lock key for one user and axis. An operation
// whose precondition spans several axes holds several keys.
func Key(userID uuid.UUID, axis string) string {
	return userID.String() + ":" + axis
}

// WithLock runs fn while holding the key, releasing on every path out,
// including a panic inside fn.
func WithLock(ctx context.Context, l Locker, key string, fn func() error) error {
	h, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer l.Release(h)
	return fn()
}

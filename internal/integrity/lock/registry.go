package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry is the in-process Locker: one channel-backed mutex per key,
// created on demand and reclaimed once the last waiter is gone. It is an
// explicit instance, not a package singleton, so tests get isolation for
// free.
type Registry struct {
	logger  *zap.SugaredLogger
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	// ch holds one token; owning the token is owning the lock.
	ch   chan struct{}
	refs int
	// holder is the current owner, guarded by the registry mutex.
	holder uuid.UUID
}

// NewRegistry creates a registry with the given bounded wait for
// acquisition. A non-positive timeout falls back to 5 seconds.
func NewRegistry(logger *zap.SugaredLogger, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Registry{
		logger:  logger,
		timeout: timeout,
		entries: make(map[string]*entry),
	}
}

// Acquire blocks until the key's token is available. The wait is bounded
// by the registry timeout and by ctx.
func (r *Registry) Acquire(ctx context.Context, key string) (*Handle, error) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		r.entries[key] = e
	}
	e.refs++
	r.mu.Unlock()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case e.ch <- struct{}{}:
		h := &Handle{Key: key, Holder: uuid.New(), AcquiredAt: time.Now()}
		r.mu.Lock()
		e.holder = h.Holder
		r.mu.Unlock()
		r.logger.Debugw("operation lock acquired", "key", key, "holder", h.Holder)
		return h, nil
	case <-ctx.Done():
		r.drop(key, e)
		return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
	case <-timer.C:
		r.drop(key, e)
		r.logger.Warnw("operation lock wait timed out", "key", key, "timeout", r.timeout)
		return nil, ErrLockTimeout
	}
}

// Release frees the key if and only if h still owns it, the same
// compare-before-delete the redis locker's release script performs.
func (r *Registry) Release(h *Handle) error {
	if h == nil {
		return fmt.Errorf("nil lock handle")
	}

	r.mu.Lock()
	e, ok := r.entries[h.Key]
	if ok && e.holder != h.Holder {
		r.mu.Unlock()
		return fmt.Errorf("lock %s is no longer held by %s", h.Key, h.Holder)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("lock %s is not held", h.Key)
	}

	select {
	case <-e.ch:
	default:
		return fmt.Errorf("lock %s is not held", h.Key)
	}

	r.drop(h.Key, e)
	r.logger.Debugw("operation lock released",
		"key", h.Key,
		"holder", h.Holder,
		"held", time.Since(h.AcquiredAt))
	return nil
}

// drop decrements the entry's refcount and reclaims it once unused.
func (r *Registry) drop(key string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	if e.refs <= 0 {
		delete(r.entries, key)
	}
}

// Held reports whether the key is currently locked. Diagnostic only; the
// answer can be stale by the time the caller acts on it.
func (r *Registry) Held(key string) bool {
	r.mu.Lock()
	e, ok := r.entries[key]
	r.mu.Unlock()
	return ok && len(e.ch) == 1
}

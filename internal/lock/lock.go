// Package lock serializes reindex runs. A held lock makes concurrent
// attempts fail fast instead of queueing behind it.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by TryLock when another holder owns the lock.
var ErrHeld = errors.New("lock: already held")

// Locker is a non-blocking mutual exclusion lock.
type Locker interface {
	// TryLock acquires the lock or returns ErrHeld. The returned function
	// releases it.
	TryLock(ctx context.Context) (unlock func(context.Context) error, err error)
}

// Local is an in-process Locker.
type Local struct {
	mu sync.Mutex
}

// NewLocal creates an unlocked in-process lock.
func NewLocal() *Local {
	return &Local{}
}

// TryLock acquires the lock if it is free.
func (l *Local) TryLock(_ context.Context) (func(context.Context) error, error) {
	if !l.mu.TryLock() {
		return nil, ErrHeld
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, nil
}

// releaseScript deletes the key only while it still holds our token, so a
// holder whose lease expired cannot release someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every replica talking to the same Redis. The
// lease expires after ttl so a crashed holder cannot block reindexing forever.
type Redis struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedis creates a lock stored under key with the given lease.
func NewRedis(client redis.Cmdable, key string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: key, ttl: ttl}
}

// TryLock sets the key if it is absent (SET NX PX).
func (r *Redis) TryLock(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.New().String()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock: acquire %s: %w", r.key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, r.client, []string{r.key}, token).Err(); err != nil {
			return fmt.Errorf("lock: release %s: %w", r.key, err)
		}
		return nil
	}, nil
}

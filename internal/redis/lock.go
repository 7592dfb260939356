package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
)

const defaultRetryInterval = 25 * time.Millisecond

// Locker guards the booking critical section for one lock key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// LockOptions tune the slot locker. A zero Wait makes a single acquire attempt.
type LockOptions struct {
	TTL           time.Duration
	Wait          time.Duration
	RetryInterval time.Duration
}

type redisSlotLocker struct {
	client *redis.Client
	opts   LockOptions
}

// NewRedisSlotLocker creates a locker backed by SET NX keys holding a random token.
func NewRedisSlotLocker(client *redis.Client, opts LockOptions) Locker {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	return &redisSlotLocker{client: client, opts: opts}
}

// DayKey names the lock covering every slot of a clinic day.
func DayKey(clinicID, date string) string {
	return fmt.Sprintf("lock:slot:%s:%s", clinicID, date)
}

// WithLock runs fn while holding key. fn gets a context bounded by the lock TTL
// so the work cannot outlive the lock.
func (l *redisSlotLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.opts.TTL)
	defer cancel()

	return fn(lockCtx)
}

func (l *redisSlotLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.opts.Wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
			}
			return fmt.Errorf("acquire slot lock: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Add(l.opts.RetryInterval).Before(deadline) {
			return ErrLockNotAcquired
		}

		t := time.NewTimer(l.opts.RetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
		case <-t.C:
		}
	}
}

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}

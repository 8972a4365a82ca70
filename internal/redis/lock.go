package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
)

// Locker is used by the booking service to guard critical sections per slot
type Locker interface {
	WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// SlotKey identifies one (service, professional, start) bucket.
func SlotKey(serviceID, professionalID uuid.UUID, start time.Time) string {
	return fmt.Sprintf("lock:slot:%s:%s:%d", serviceID, professionalID, start.Unix())
}

type LockOptions struct {
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
}

type redisSlotLocker struct {
	client *redis.Client
	opts   LockOptions
}

// NewRedisSlotLocker creates a locker that uses a per slot Redis key. A busy
// key is retried opts.Retries times before ErrLockNotAcquired is returned.
func NewRedisSlotLocker(client *redis.Client, opts LockOptions) Locker {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Second
	}
	return &redisSlotLocker{
		client: client,
		opts:   opts,
	}
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// released on a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.opts.TTL)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisSlotLocker) acquire(ctx context.Context, key, token string) error {
	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			return fmt.Errorf("acquire slot lock: %w", err)
		}
		if ok {
			return nil
		}
		if attempt >= l.opts.Retries {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.opts.RetryDelay):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}

// LocalLocker serializes slot keys inside one process. It backs tests and
// single-node tools that run without Redis. A key's entry lives only while
// some caller holds or waits for it.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	sync.Mutex
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*localSlot)}
}

func (l *LocalLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &localSlot{}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		slot.refs--
		if slot.refs == 0 {
			delete(l.slots, key)
		}
		l.mu.Unlock()
	}()

	slot.Lock()
	defer slot.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

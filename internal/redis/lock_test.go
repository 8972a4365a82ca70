package redisclient

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotKey_DistinguishesBuckets(t *testing.T) {
	svc, pro := uuid.New(), uuid.New()
	start := time.Date(2031, 3, 3, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, SlotKey(svc, pro, start), SlotKey(svc, pro, start.In(time.FixedZone("x", 3600))))
	assert.NotEqual(t, SlotKey(svc, pro, start), SlotKey(svc, pro, start.Add(30*time.Minute)))
	assert.NotEqual(t, SlotKey(svc, pro, start), SlotKey(svc, uuid.New(), start))
}

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	l := NewLocalLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithSlotLock(context.Background(), "k", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.slots)
}

func TestLocalLocker_ForgetsReleasedKeys(t *testing.T) {
	l := NewLocalLocker()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := SlotKey(uuid.New(), uuid.New(), time.Date(2031, 3, 3, 9, 0, 0, 0, time.UTC))
			err := l.WithSlotLock(context.Background(), key, func(context.Context) error {
				if i%2 == 0 {
					return assert.AnError
				}
				return nil
			})
			if i%2 == 0 {
				assert.ErrorIs(t, err, assert.AnError)
			}
		}(i)
	}
	wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.slots)
}

func TestLocalLocker_CancelledContext(t *testing.T) {
	l := NewLocalLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := l.WithSlotLock(ctx, "k", func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Empty(t, l.slots)
}

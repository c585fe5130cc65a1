package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_ExclusivePerKey(t *testing.T) {
	l := NewLocalLocker(5 * time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "user:u1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.Held())
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	l := NewLocalLocker(100 * time.Millisecond)
	ctx := context.Background()

	r1, err := l.Acquire(ctx, "user:u1")
	require.NoError(t, err)
	defer r1()

	r2, err := l.Acquire(ctx, "user:u2")
	require.NoError(t, err)
	r2()

	assert.Equal(t, 1, l.Held())
}

func TestLocalLocker_Timeout(t *testing.T) {
	l := NewLocalLocker(20 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "user:u1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "user:u1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	release() // second call is a no-op

	r, err := l.Acquire(ctx, "user:u1")
	require.NoError(t, err)
	r()
	assert.Equal(t, 0, l.Held())
}

func TestLocalLocker_ContextCanceled(t *testing.T) {
	l := NewLocalLocker(0)

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

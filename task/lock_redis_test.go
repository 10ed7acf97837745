package task_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/codeforge-ai/orchestrator/task"
)

func newTestRedisLocker(t *testing.T) *task.RedisLocker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return &task.RedisLocker{Client: client, RetryDelay: time.Millisecond, Timeout: 2 * time.Second}
}

func TestRedisLockerExcludesConcurrentHolders(t *testing.T) {
	locker := newTestRedisLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "task-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r2, err := locker.Acquire(ctx, "task-1")
		require.NoError(t, err)
		close(acquired)
		r2()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire must not succeed while the first holds the lock")
	case <-time.After(100 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestRedisLockerTimesOutWhenContended(t *testing.T) {
	locker := newTestRedisLocker(t)
	locker.Timeout = 80 * time.Millisecond
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "task-2")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "task-2")
	require.Error(t, err)
}

func TestFSStoreWithDistLockSerializesUpdates(t *testing.T) {
	s := newStore(t)
	s.DistLock = newTestRedisLocker(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, runningTask("dist1")))

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, "dist1", func(t *task.Task) error {
				n := atomic.AddInt64(&counter, 1)
				t.Progress.Percent = int(n)
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := s.Load(ctx, "dist1")
	require.NoError(t, err)
	require.Equal(t, 20, final.Progress.Percent)
}

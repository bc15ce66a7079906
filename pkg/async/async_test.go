package async_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ssokit/pkg/async"
)

func TestGo(t *testing.T) {
	t.Parallel()

	t.Run("returns result", func(t *testing.T) {
		t.Parallel()
		f := async.Go(context.Background(), func(context.Context) (int, error) { return 42, nil })
		v, err := f.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.True(t, f.IsComplete())
	})

	t.Run("returns error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		f := async.Go(context.Background(), func(context.Context) (int, error) { return 0, boom })
		_, err := f.Await(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("pre-canceled context skips fn", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var called atomic.Bool
		f := async.Go(ctx, func(context.Context) (int, error) {
			called.Store(true)
			return 1, nil
		})
		<-f.Done()
		_, err := f.Await(context.Background())
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called.Load())
	})

	t.Run("await timeout", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		defer close(release)
		f := async.Go(context.Background(), func(context.Context) (int, error) {
			<-release
			return 1, nil
		})
		_, err := f.AwaitWithTimeout(10 * time.Millisecond)
		assert.ErrorIs(t, err, async.ErrTimeout)
		assert.False(t, f.IsComplete())
	})
}

func TestInflight(t *testing.T) {
	t.Parallel()

	t.Run("concurrent callers share one run", func(t *testing.T) {
		t.Parallel()

		var in async.Inflight[int]
		var runs atomic.Int32
		release := make(chan struct{})

		fn := func(context.Context) (int, error) {
			runs.Add(1)
			<-release
			return 7, nil
		}

		const callers = 10
		var wg sync.WaitGroup
		results := make([]int, callers)
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := in.Do(context.Background(), fn)
				assert.NoError(t, err)
				results[i] = v
			}()
		}

		require.Eventually(t, in.Running, time.Second, time.Millisecond)
		// Give the remaining callers time to join.
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), runs.Load())
		for _, v := range results {
			assert.Equal(t, 7, v)
		}
	})

	t.Run("starts fresh after completion", func(t *testing.T) {
		t.Parallel()

		var in async.Inflight[int]
		var runs atomic.Int32
		fn := func(context.Context) (int, error) { return int(runs.Add(1)), nil }

		v, err := in.Do(context.Background(), fn)
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		require.Eventually(t, func() bool { return !in.Running() }, time.Second, time.Millisecond)

		v, err = in.Do(context.Background(), fn)
		require.NoError(t, err)
		assert.Equal(t, 2, v)
	})

	t.Run("canceled waiter does not cancel the run", func(t *testing.T) {
		t.Parallel()

		var in async.Inflight[int]
		release := make(chan struct{})
		fn := func(ctx context.Context) (int, error) {
			<-release
			return 3, ctx.Err()
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := in.Do(ctx, fn)
			done <- err
		}()
		require.Eventually(t, in.Running, time.Second, time.Millisecond)
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)

		waiter := make(chan int, 1)
		go func() {
			v, _ := in.Do(context.Background(), fn)
			waiter <- v
		}()
		close(release)
		assert.Equal(t, 3, <-waiter)
	})
}

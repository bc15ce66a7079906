package async

import (
	"context"
	"sync"
	"time"
)

// Future represents the result of an asynchronous computation.
type Future[U any] struct {
	result U
	err    error
	done   chan struct{}
}

// Go runs fn in a new goroutine and returns its Future.
func Go[U any](ctx context.Context, fn func(context.Context) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}

	go func() {
		defer close(f.done)

		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.result, f.err = fn(ctx)
	}()

	return f
}

// Await blocks until the computation completes or ctx is done.
func (f *Future[U]) Await(ctx context.Context) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero U
		return zero, ctx.Err()
	}
}

// AwaitWithTimeout waits at most timeout for completion.
func (f *Future[U]) AwaitWithTimeout(timeout time.Duration) (U, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-f.done:
		return f.result, f.err
	case <-t.C:
		var zero U
		return zero, ErrTimeout
	}
}

// Done is closed when the computation completes.
func (f *Future[U]) Done() <-chan struct{} {
	return f.done
}

// IsComplete reports completion without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Inflight shares one running computation between concurrent callers.
// The zero value is ready to use.
type Inflight[U any] struct {
	mu      sync.Mutex
	current *Future[U]
}

// Do joins the running computation or starts fn if none is running. The
// computation runs detached from the caller's cancellation so that one
// impatient caller cannot fail the others; ctx only bounds the wait.
func (i *Inflight[U]) Do(ctx context.Context, fn func(context.Context) (U, error)) (U, error) {
	i.mu.Lock()
	f := i.current
	if f == nil {
		f = Go(context.WithoutCancel(ctx), fn)
		i.current = f
		go i.clear(f)
	}
	i.mu.Unlock()

	return f.Await(ctx)
}

// Running reports whether a computation is in flight.
func (i *Inflight[U]) Running() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current != nil
}

func (i *Inflight[U]) clear(f *Future[U]) {
	<-f.done
	i.mu.Lock()
	if i.current == f {
		i.current = nil
	}
	i.mu.Unlock()
}

package engine

import "context"

// Future is the pending result of one remote call.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Async starts fn on its own goroutine.
func Async[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Resolved wraps a value that needs no remote call.
func Resolved[T any](val T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: val}
	close(f.done)
	return f
}

// Await blocks until the call finishes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// infallible adapts a call that cannot fail to Async.
func infallible[T any](fn func(context.Context) T) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return fn(ctx), nil
	}
}

package future

import (
	"context"
	"sync"
)

// Future is the eventual result of an asynchronous operation. It settles
// exactly once, either with a value or with an error.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func pending[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// New runs executor synchronously and returns a future settled by whichever
// of resolve or reject is called first. Later calls are ignored.
func New[T any](executor func(resolve func(T), reject func(error))) *Future[T] {
	f := pending[T]()
	executor(
		func(v T) { f.settle(v, nil) },
		func(err error) {
			var zero T
			f.settle(zero, err)
		},
	)
	return f
}

// Resolved returns a future already fulfilled with v.
func Resolved[T any](v T) *Future[T] {
	f := pending[T]()
	f.settle(v, nil)
	return f
}

// Rejected returns a future already rejected with err.
func Rejected[T any](err error) *Future[T] {
	f := pending[T]()
	var zero T
	f.settle(zero, err)
	return f
}

func (f *Future[T]) settle(v T, err error) {
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has a result yet.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future settles.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.value, f.err
}

// Await blocks until the future settles or ctx is done, whichever is first.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then chains a continuation onto f. onFulfilled receives the value when f
// fulfills and onRejected the error when f rejects; a nil handler passes the
// outcome through unchanged. The continuation always runs on a new goroutine,
// never inline with the caller.
func Then[T any](f *Future[T], onFulfilled func(T) (T, error), onRejected func(error) (T, error)) *Future[T] {
	next := pending[T]()
	go func() {
		<-f.done
		if f.err != nil {
			if onRejected == nil {
				next.settle(f.value, f.err)
				return
			}
			next.settle(onRejected(f.err))
			return
		}
		if onFulfilled == nil {
			next.settle(f.value, nil)
			return
		}
		next.settle(onFulfilled(f.value))
	}()
	return next
}

// Map is Then for a continuation that changes the value type. Rejections
// propagate untouched.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	next := pending[U]()
	go func() {
		<-f.done
		if f.err != nil {
			var zero U
			next.settle(zero, f.err)
			return
		}
		next.settle(fn(f.value))
	}()
	return next
}

// FlatMap chains a continuation that itself returns a future.
func FlatMap[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	next := pending[U]()
	go func() {
		<-f.done
		if f.err != nil {
			var zero U
			next.settle(zero, f.err)
			return
		}
		inner := fn(f.value)
		if inner == nil {
			var zero U
			next.settle(zero, nil)
			return
		}
		next.settle(inner.Wait())
	}()
	return next
}

// All fulfills with every value in input order, or rejects with the first
// error to arrive.
func All[T any](fs ...*Future[T]) *Future[[]T] {
	next := pending[[]T]()
	if len(fs) == 0 {
		next.settle([]T{}, nil)
		return next
	}

	values := make([]T, len(fs))
	var (
		mu        sync.Mutex
		remaining = len(fs)
	)
	for i, f := range fs {
		go func(i int, f *Future[T]) {
			v, err := f.Wait()
			if err != nil {
				next.settle(nil, err)
				return
			}
			mu.Lock()
			values[i] = v
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				next.settle(values, nil)
			}
		}(i, f)
	}
	return next
}

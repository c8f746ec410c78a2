package future

import (
	"context"
	"sync"
)

// Future is a single-assignment result container. It starts pending and is
// settled exactly once, either with a value or with an error. Settlement is
// terminal: later Resolve or Fail calls are no-ops.
type Future[T any] struct {
	value  T
	err    error
	doneCh chan struct{}

	settled bool
	lk      sync.Mutex
}

func New[T any]() *Future[T] {
	return &Future[T]{doneCh: make(chan struct{})}
}

// Resolved returns a future already settled with val.
func Resolved[T any](val T) *Future[T] {
	fut := New[T]()
	fut.Resolve(val)
	return fut
}

// Failed returns a future already settled with err.
func Failed[T any](err error) *Future[T] {
	fut := New[T]()
	fut.Fail(err)
	return fut
}

// Resolve settles the future with val. It reports whether this call won the
// settlement.
func (fut *Future[T]) Resolve(val T) bool {
	return fut.settle(val, nil)
}

// Fail settles the future with err. It reports whether this call won the
// settlement.
func (fut *Future[T]) Fail(err error) bool {
	var zero T
	return fut.settle(zero, err)
}

func (fut *Future[T]) settle(val T, err error) bool {
	fut.lk.Lock()
	defer fut.lk.Unlock()
	if fut.settled {
		return false
	}
	fut.settled = true
	fut.value = val
	fut.err = err
	close(fut.doneCh)
	return true
}

// Done is closed once the future settles.
func (fut *Future[T]) Done() <-chan struct{} {
	return fut.doneCh
}

func (fut *Future[T]) Settled() bool {
	fut.lk.Lock()
	defer fut.lk.Unlock()
	return fut.settled
}

// Wait blocks until the future settles or ctx expires. A ctx error only
// abandons the wait, it does not settle the future.
func (fut *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-fut.doneCh:
		// settlement is terminal, reading without the lock is fine once
		// doneCh is closed.
		return fut.value, fut.err
	}
}

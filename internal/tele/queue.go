package tele

import (
	"context"
	"fmt"
)

// Queue is bounded FIFO handoff between goroutines.
// Put blocks while full, Get blocks while empty. There is no drop policy
// and no full/empty error; context only serves process stop.
type Queue[T any] struct {
	ch chan T
}

func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("code error NewQueue capacity=%d", capacity))
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Put transfers ownership of v into queue.
// On error (only ctx done) caller still owns v.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	// prefer success when both ready
	select {
	case q.ch <- v:
		return nil
	default:
	}
	select {
	case q.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns ownership of oldest item.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	select {
	case v := <-q.ch:
		return v, nil
	default:
	}
	select {
	case v := <-q.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (q *Queue[T]) Len() int { return len(q.ch) }
func (q *Queue[T]) Cap() int { return cap(q.ch) }

package cache

import (
	"context"
	"fmt"
)

// call is one outstanding producer invocation shared by every caller
// that asked for the same key while it ran.
type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

func newCall[V any]() *call[V] {
	return &call[V]{done: make(chan struct{})}
}

func (c *call[V]) settle(val V, err error) {
	c.val = val
	c.err = err
	close(c.done)
}

// wait blocks until the call settles or ctx is done. Giving up does not
// affect the call or its other waiters.
func (c *call[V]) wait(ctx context.Context) (V, error) {
	select {
	case <-c.done:
		return c.val, c.err
	default:
	}

	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func invoke[V any](ctx context.Context, producer Producer[V]) (val V, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero V
			val, err = zero, fmt.Errorf("%w: %v", ErrProducerPanic, r)
		}
	}()
	return producer(ctx)
}

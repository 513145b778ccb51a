package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var (
	// ErrPoolOverloaded is returned when the pool and its wait queue are full
	ErrPoolOverloaded = errors.New("worker pool overloaded")
	// ErrPoolClosed is returned after Close
	ErrPoolClosed = errors.New("worker pool closed")
	// ErrTaskPanicked wraps a panic recovered from a task
	ErrTaskPanicked = errors.New("task panicked")
)

// Pool bounds the number of in-flight external calls across all requests
type Pool struct {
	pool   *ants.Pool
	logger *zap.Logger
}

// Stats is a point-in-time view of pool usage
type Stats struct {
	Capacity int
	Running  int
	Waiting  int
}

// NewPool creates a pool of size workers. maxWaiting bounds how many callers may
// block for a free worker; 0 means unbounded.
func NewPool(size, maxWaiting int, logger *zap.Logger) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p, err := ants.NewPool(size, ants.WithMaxBlockingTasks(maxWaiting))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Pool{pool: p, logger: logger.Named("dispatch")}, nil
}

// Stats returns current pool usage
func (p *Pool) Stats() Stats {
	return Stats{
		Capacity: p.pool.Cap(),
		Running:  p.pool.Running(),
		Waiting:  p.pool.Waiting(),
	}
}

// Close releases the workers. Calls made afterwards fail with ErrPoolClosed.
func (p *Pool) Close() {
	p.pool.Release()
}

type result[T any] struct {
	value T
	err   error
}

// Call runs fn on a pooled worker under its own timeout and waits for it.
// A zero timeout means the parent context alone bounds the call. Panics in fn
// are returned as ErrTaskPanicked. When the context ends first, including while
// waiting for a free worker, Call returns immediately and fn is left to observe
// the cancellation. A queued task whose context has already ended never runs fn.
func Call[T any](ctx context.Context, p *Pool, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan result[T], 1)
	task := func() {
		if err := callCtx.Err(); err != nil {
			done <- result[T]{err: err}
			return
		}
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: fmt.Errorf("%w: %v", ErrTaskPanicked, r)}
			}
		}()
		v, err := fn(callCtx)
		done <- result[T]{value: v, err: err}
	}

	if p == nil {
		go task()
	} else {
		// Submit blocks while every worker is busy and does not watch ctx.
		submitted := make(chan error, 1)
		go func() { submitted <- p.pool.Submit(task) }()
		select {
		case err := <-submitted:
			if err != nil {
				return zero, submitError(err)
			}
		case <-callCtx.Done():
			return zero, fmt.Errorf("dispatch: waiting for worker: %w", callCtx.Err())
		}
	}

	select {
	case r := <-done:
		return r.value, r.err
	case <-callCtx.Done():
		return zero, fmt.Errorf("dispatch: %w", callCtx.Err())
	}
}

func submitError(err error) error {
	switch {
	case errors.Is(err, ants.ErrPoolOverload):
		return ErrPoolOverloaded
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	default:
		return fmt.Errorf("submit task: %w", err)
	}
}

// Package admission bounds the number of evaluations running at once. A
// request must hold a permit for the whole lifetime of its evaluation; the
// pool never hands out more than the configured budget.
package admission

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrUnavailable reports that a permit could not be acquired because the
// caller's context ended first, typically during shutdown. Callers should
// treat it as a service-unavailable condition rather than retry.
var ErrUnavailable = errors.New("no permit available")

// Controller is a fixed-size FIFO permit pool.
type Controller struct {
	sem    *semaphore.Weighted
	budget int64
}

// NewController returns a pool of the given budget. A budget below one
// falls back to the host's CPU count.
func NewController(budget int) *Controller {
	if budget < 1 {
		budget = runtime.NumCPU()
	}
	return &Controller{
		sem:    semaphore.NewWeighted(int64(budget)),
		budget: int64(budget),
	}
}

// Budget returns the configured permit count.
func (c *Controller) Budget() int {
	return int(c.budget)
}

// Acquire blocks until a permit is granted or ctx ends. Waiters are served
// in FIFO order. There is no timeout beyond the caller's context.
func (c *Controller) Acquire(ctx context.Context) (*Permit, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &Permit{sem: c.sem}, nil
}

// TryAcquire grants a permit only if one is immediately available.
func (c *Controller) TryAcquire() (*Permit, bool) {
	if !c.sem.TryAcquire(1) {
		return nil, false
	}
	return &Permit{sem: c.sem}, true
}

// Permit is an admission token. Release returns it to the pool; releasing
// more than once is a no-op.
type Permit struct {
	once sync.Once
	sem  *semaphore.Weighted
}

func (p *Permit) Release() {
	p.once.Do(func() {
		p.sem.Release(1)
	})
}

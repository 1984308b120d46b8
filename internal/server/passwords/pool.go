package passwords

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many hash computations run at once so slow hashing
// cannot occupy every CPU that request handling needs.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool returns a pool with the given number of slots. Non-positive sizes
// fall back to runtime.NumCPU().
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Run waits for a free slot and runs fn. It returns ctx.Err() if the
// context is done before a slot frees up.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

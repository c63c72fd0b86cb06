package async

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by Submit after Close has been called
var ErrPoolClosed = goerr.New("pool is closed")

// Pool runs blocking work on at most size goroutines at once
type Pool struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a pool. size below 1 is treated as 1.
func NewPool(size int64) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(size)}
}

// Submit waits for a free slot and runs fn on its own goroutine. The returned
// channel receives exactly one value: fn's error, or an error describing a
// recovered panic.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context) error) (<-chan error, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return nil, goerr.Wrap(err, "failed to acquire pool slot")
	}

	done := make(chan error, 1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- goerr.New("panic in pool task", goerr.V("panic", r))
			}
		}()

		done <- fn(ctx)
	}()

	return done, nil
}

// Close stops accepting new work and waits until in-flight work finishes
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
}

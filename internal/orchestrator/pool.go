package orchestrator

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool is closed")

// Pool runs submitted jobs on a fixed set of workers with a bounded queue.
type Pool struct {
	jobs chan func()
	wg   sync.WaitGroup

	// mu is held for reading during submissions and for writing by Close,
	// so the jobs channel is never closed mid-send.
	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines consuming a queue of the given depth.
func NewPool(workers, depth int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if depth <= 0 {
		depth = workers
	}
	p := &Pool{jobs: make(chan func(), depth)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// Submit queues a job, blocking until queue space frees up or ctx ends.
func (p *Pool) Submit(ctx context.Context, job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Depth reports how many jobs are currently queued.
func (p *Pool) Depth() int {
	return len(p.jobs)
}

// Close stops accepting jobs and waits for in-flight ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

package resilience

import (
	"context"
	"errors"
	"sync"
)

var ErrWorkerPoolClosed = errors.New("worker pool is closed")

// PoolOption customizes a WorkerPool.
type PoolOption func(*WorkerPool)

// WithPanicHandler recovers job panics and hands the value to fn.
// Without it a panicking job crashes the process.
func WithPanicHandler(fn func(recovered any)) PoolOption {
	return func(p *WorkerPool) {
		p.onPanic = fn
	}
}

// WorkerPool runs submitted jobs on a fixed set of goroutines.
type WorkerPool struct {
	jobs    chan func()
	closed  bool
	mu      sync.RWMutex
	once    sync.Once
	wg      sync.WaitGroup
	onPanic func(any)
}

func NewWorkerPool(workers, queueSize int, opts ...PoolOption) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}

	p := &WorkerPool{
		jobs: make(chan func(), queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.run(job)
			}
		}()
	}

	return p
}

func (p *WorkerPool) run(job func()) {
	if job == nil {
		return
	}
	if p.onPanic != nil {
		defer func() {
			if r := recover(); r != nil {
				p.onPanic(r)
			}
		}()
	}
	job()
}

// Submit blocks until the job is queued, ctx is done, or the pool is closed.
func (p *WorkerPool) Submit(ctx context.Context, job func()) error {
	if job == nil {
		return nil
	}

	// Holding the read lock keeps Close from closing the channel mid-send.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrWorkerPoolClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- job:
		return nil
	}
}

func (p *WorkerPool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Drain closes the pool and waits for queued jobs to finish.
func (p *WorkerPool) Drain() {
	p.Close()
	p.Wait()
}

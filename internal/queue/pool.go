// Package queue runs detached jobs on a fixed set of workers.
package queue

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	// ErrQueueFull is returned when the backlog is at capacity
	ErrQueueFull = errors.New("queue is full")
	// ErrPoolClosed is returned after Shutdown has been called
	ErrPoolClosed = errors.New("pool is closed")
)

// Job is a unit of detached work. ctx is canceled only when the pool is
// forced to stop.
type Job func(ctx context.Context)

type task struct {
	id  string
	job Job
}

// Stats is a snapshot of pool activity
type Stats struct {
	Queued    int
	Running   int64
	Completed int64
	Panicked  int64
}

// Pool executes submitted jobs on a bounded number of goroutines.
// Submission never blocks.
type Pool struct {
	tasks  chan task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	running   atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64

	// OnDepth, when set, is called with the backlog size after every change
	OnDepth func(n int)
}

// NewPool starts workers goroutines draining a backlog of queueSize
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:  make(chan task, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues job and returns immediately
func (p *Pool) Submit(id string, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task{id: id, job: job}:
		p.reportDepth()
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.reportDepth()
		p.run(t)
	}
}

func (p *Pool) run(t task) {
	p.running.Add(1)
	defer func() {
		p.running.Add(-1)
		p.completed.Add(1)
		if r := recover(); r != nil {
			p.panicked.Add(1)
			log.Printf("[%s] job panicked: %v\n%s", t.id, r, debug.Stack())
		}
	}()
	t.job(p.ctx)
}

func (p *Pool) reportDepth() {
	if p.OnDepth != nil {
		p.OnDepth(len(p.tasks))
	}
}

// Stats returns a snapshot of pool activity
func (p *Pool) Stats() Stats {
	return Stats{
		Queued:    len(p.tasks),
		Running:   p.running.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish. If ctx expires first, running jobs see their context canceled and
// Shutdown returns ctx.Err() once they exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

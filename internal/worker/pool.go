package worker

import (
	"errors"
	"sync"
)

// ErrQueueFull is returned by Submit when the queue has no room; the caller
// maps it to a retryable HTTP response.
var ErrQueueFull = errors.New("job queue full")

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 64
)

// Task is one unit of work, typically a full pipeline run.
type Task func()

// Pool runs submitted tasks on a fixed set of workers with a bounded queue.
// Jobs still progress independently of each other; the bound only adds
// backpressure at submission time.
type Pool struct {
	tasks   chan Task
	workers int
	wg      sync.WaitGroup
}

func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Pool{
		tasks:   make(chan Task, queueSize),
		workers: workers,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit enqueues a task without blocking.
func (p *Pool) Submit(task Task) error {
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop drains the queue and waits for in-flight tasks. Submit must not be
// called after Stop.
func (p *Pool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}

// Depth reports how many tasks are waiting in the queue.
func (p *Pool) Depth() int {
	return len(p.tasks)
}

// Workers reports the configured worker count.
func (p *Pool) Workers() int {
	return p.workers
}

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type task struct {
	name string
	fn   func(context.Context)
}

// Pool runs fire-and-forget side effects (welcome replies, media pushes)
// off the request path on a fixed set of workers. The queue is bounded and
// Submit never blocks: under pressure we shed side effects rather than
// stall webhook handling.
type Pool struct {
	log         *slog.Logger
	queue       chan task
	taskTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(log *slog.Logger, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	p := &Pool{
		log:         log,
		queue:       make(chan task, queueSize),
		taskTimeout: 30 * time.Second,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.queue {
		p.run(t)
	}
}

func (p *Pool) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("background task panicked", "task", t.name, "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), p.taskTimeout)
	defer cancel()
	t.fn(ctx)
}

// Submit enqueues a task. It reports false when the queue is full or the
// pool is shut down; the caller decides whether dropping is acceptable.
func (p *Pool) Submit(name string, fn func(context.Context)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- task{name: name, fn: fn}:
		return true
	default:
		return false
	}
}

// Shutdown stops intake and waits for queued tasks to drain, up to the
// context deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

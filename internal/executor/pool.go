package executor

import (
	"runtime"
	"sync"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"
)

// Pool runs tasks on a fixed set of workers. Tasks submitted while every
// worker is busy wait in an unbounded FIFO backlog, so Submit never blocks.
type Pool struct {
	log     zerolog.Logger
	workers int

	mu      sync.Mutex
	cond    *sync.Cond
	backlog *queue.Queue
	closed  bool

	wg sync.WaitGroup
}

// NewPool starts workers goroutines; non-positive means runtime.NumCPU().
func NewPool(workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	o := newOptions(opts)
	p := &Pool{
		log:     o.log.With().Str("component", "pool").Logger(),
		workers: workers,
		backlog: queue.New(),
	}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.backlog.Length() == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.backlog.Length() == 0 {
			// Closed and drained.
			p.mu.Unlock()
			return
		}
		task := p.backlog.Remove().(func())
		p.mu.Unlock()

		run(p.log, task)
	}
}

// Submit implements Executor.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.backlog.Add(task)
	p.cond.Signal()
	return nil
}

// Pending reports how many tasks wait for a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backlog.Length()
}

// Workers reports the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// Close rejects further tasks, lets the workers drain the backlog and
// waits for them to exit.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}

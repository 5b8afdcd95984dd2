package executor

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Go starts one goroutine per task.
type Go struct {
	log     zerolog.Logger
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	running atomic.Int64
}

func NewGo(opts ...Option) *Go {
	o := newOptions(opts)
	return &Go{log: o.log.With().Str("component", "executor").Logger()}
}

// Submit implements Executor.
func (g *Go) Submit(task func()) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return ErrClosed
	}
	g.wg.Add(1)
	g.running.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.running.Add(-1)
		run(g.log, task)
	}()
	return nil
}

// Running reports how many tasks have not finished yet.
func (g *Go) Running() int {
	return int(g.running.Load())
}

// Wait blocks until every submitted task has returned.
func (g *Go) Wait() {
	g.wg.Wait()
}

// Close rejects further tasks and waits for the running ones.
func (g *Go) Close() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.wg.Wait()
	return nil
}

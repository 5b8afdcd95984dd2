// Package executor runs connection handlers off the accept loop.
package executor

import (
	"errors"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by Submit once the executor has been closed.
var ErrClosed = errors.New("executor: closed")

// Executor runs tasks asynchronously. Submit must not block on the task.
type Executor interface {
	Submit(task func()) error
}

type options struct {
	log zerolog.Logger
}

// Option configures an executor.
type Option func(*options)

// WithLogger sets the logger that receives task panics.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

func newOptions(opts []Option) options {
	o := options{log: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// run executes task, logging instead of propagating a panic.
func run(l zerolog.Logger, task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("task panicked")
		}
	}()
	task()
}

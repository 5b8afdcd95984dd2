package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omochice/netstream/pkg/stream"
)

// ErrAcceptTimeout is returned by AcceptTimeout when no peer connected in time.
var ErrAcceptTimeout = errors.New("tcp: accept timed out")

// Listener accepts TCP connections on a bound endpoint.
// Accept calls are meant to come from a single loop; Close may be called
// from anywhere and unblocks a pending accept.
type Listener struct {
	ln        *net.TCPListener
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Listen binds ep with SO_REUSEADDR set.
func Listen(ep Endpoint) (*Listener, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(context.Background(), "tcp", ep.Address())
	if err != nil {
		return nil, fmt.Errorf("tcp: listen %s: %w", ep, stream.IOFailure("listen", err))
	}
	return &Listener{ln: ln.(*net.TCPListener)}, nil
}

// Accept blocks until a peer connects or the listener is closed.
func (l *Listener) Accept() (*stream.Shared, error) {
	conn, err := l.AcceptRaw(0)
	if err != nil {
		return nil, err
	}
	return stream.NewShared(NewConn(conn)), nil
}

// AcceptTimeout waits at most d for a peer. A non-positive d blocks like Accept.
func (l *Listener) AcceptTimeout(d time.Duration) (*stream.Shared, error) {
	conn, err := l.AcceptRaw(d)
	if err != nil {
		return nil, err
	}
	return stream.NewShared(NewConn(conn)), nil
}

// AcceptRaw is AcceptTimeout without the stream wrapping, for callers that
// need to inspect the connection before choosing a transport.
func (l *Listener) AcceptRaw(d time.Duration) (net.Conn, error) {
	if l.closed.Load() {
		return nil, stream.ErrListenerClosed
	}

	var deadline time.Time
	if d > 0 {
		deadline = time.Now().Add(d)
	}
	if err := l.ln.SetDeadline(deadline); err != nil {
		if l.closed.Load() || errors.Is(err, net.ErrClosed) {
			return nil, stream.ErrListenerClosed
		}
		return nil, stream.IOFailure("accept", err)
	}

	conn, err := l.ln.AcceptTCP()
	switch {
	case err == nil:
		return conn, nil
	case l.closed.Load(), errors.Is(err, net.ErrClosed):
		return nil, stream.ErrListenerClosed
	case errors.Is(err, os.ErrDeadlineExceeded):
		return nil, ErrAcceptTimeout
	default:
		return nil, stream.IOFailure("accept", err)
	}
}

// Close stops listening. It is safe to call more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		l.closeErr = stream.IOFailure("close", l.ln.Close())
	})
	return l.closeErr
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Endpoint returns the bound endpoint, with the ephemeral port resolved.
func (l *Listener) Endpoint() Endpoint {
	return endpointOf(l.ln.Addr())
}

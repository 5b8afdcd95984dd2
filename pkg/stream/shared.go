package stream

import (
	"net"
	"sync"
	"sync/atomic"
)

// sharedCore is the state common to every handle of one transport.
type sharedCore struct {
	t         Transport
	refs      atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// acquire takes one more reference unless the count already reached zero
// or the transport was shut down.
func (c *sharedCore) acquire() bool {
	for {
		n := c.refs.Load()
		if n <= 0 || c.closed.Load() {
			return false
		}
		if c.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (c *sharedCore) shutdown() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.t.Close()
	})
	return c.closeErr
}

// Shared is one handle on a reference-counted Transport. Independent
// adapters (a reader chain and a writer chain, say) each hold their own
// handle; the transport is closed once, when the last handle is closed or
// Shutdown is called.
//
// Read and Write may be called from different goroutines on different
// handles. Serializing the underlying syscalls is the transport's job.
type Shared struct {
	core     *sharedCore
	released atomic.Bool
}

// NewShared wraps t in its first handle.
func NewShared(t Transport) *Shared {
	core := &sharedCore{t: t}
	core.refs.Store(1)
	return &Shared{core: core}
}

// Clone returns a new handle on the same transport.
// Cloning a released handle yields a released handle.
func (s *Shared) Clone() *Shared {
	if !s.released.Load() && s.core.acquire() {
		return &Shared{core: s.core}
	}
	c := &Shared{core: s.core}
	c.released.Store(true)
	return c
}

// Read implements io.Reader.
func (s *Shared) Read(p []byte) (int, error) {
	if s.released.Load() {
		return 0, ErrClosed
	}
	return s.core.t.Read(p)
}

// Write implements io.Writer.
func (s *Shared) Write(p []byte) (int, error) {
	if s.released.Load() {
		return 0, ErrClosed
	}
	return s.core.t.Write(p)
}

// Close releases this handle. The transport is closed when no handle remains.
func (s *Shared) Close() error {
	if !s.released.CompareAndSwap(false, true) {
		return nil
	}
	if s.core.refs.Add(-1) > 0 {
		return nil
	}
	return s.core.shutdown()
}

// Shutdown closes the underlying transport for every handle.
func (s *Shared) Shutdown() error {
	return s.core.shutdown()
}

// Refs reports how many handles are still open.
func (s *Shared) Refs() int {
	return int(s.core.refs.Load())
}

// Transport returns the wrapped transport.
func (s *Shared) Transport() Transport {
	return s.core.t
}

// LocalAddr returns the local address, or nil for non-network transports.
func (s *Shared) LocalAddr() net.Addr {
	if a, ok := s.core.t.(Addresser); ok {
		return a.LocalAddr()
	}
	return nil
}

// RemoteAddr returns the peer address, or nil for non-network transports.
func (s *Shared) RemoteAddr() net.Addr {
	if a, ok := s.core.t.(Addresser); ok {
		return a.RemoteAddr()
	}
	return nil
}

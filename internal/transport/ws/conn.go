// Package ws carries the byte stream over WebSocket binary messages, so the
// same framed codec works behind HTTP infrastructure.
package ws

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/netstream/pkg/stream"
)

// Conn adapts a WebSocket connection to stream.Transport. Each Write sends
// one binary message; Read hands out message payloads, splitting a message
// across calls when p is smaller than the payload.
type Conn struct {
	conn  net.Conn
	state ws.State
	// rw reads the (possibly pre-buffered) connection and writes control
	// frame replies through the write lock.
	rw io.ReadWriter

	rmu     sync.Mutex
	pending []byte

	wmu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func newConn(conn net.Conn, r io.Reader, state ws.State) *Conn {
	if r == nil {
		r = conn
	}
	c := &Conn{conn: conn, state: state}
	c.rw = struct {
		io.Reader
		io.Writer
	}{r, lockedWriter{mu: &c.wmu, w: conn}}
	return c
}

// Read implements stream.Transport. A close frame from the peer ends the
// stream with io.EOF.
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	c.rmu.Lock()
	defer c.rmu.Unlock()

	for len(c.pending) == 0 {
		msg, err := c.readMessage()
		if err != nil {
			return 0, readFailure(err)
		}
		c.pending = msg
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *Conn) readMessage() ([]byte, error) {
	if c.state.ServerSide() {
		return wsutil.ReadClientBinary(c.rw)
	}
	return wsutil.ReadServerBinary(c.rw)
}

func readFailure(err error) error {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		return io.EOF
	}
	return stream.IOFailure("read", err)
}

// Write implements stream.Transport.
func (c *Conn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	var err error
	if c.state.ServerSide() {
		err = wsutil.WriteServerBinary(c.conn, p)
	} else {
		err = wsutil.WriteClientBinary(c.conn, p)
	}
	if err != nil {
		return 0, stream.IOFailure("write", err)
	}
	return len(p), nil
}

// Close sends a normal closure frame and closes the connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		c.wmu.Lock()
		if c.state.ServerSide() {
			_ = wsutil.WriteServerMessage(c.conn, ws.OpClose, body)
		} else {
			_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, body)
		}
		c.wmu.Unlock()
		c.closeErr = stream.IOFailure("close", c.conn.Close())
	})
	return c.closeErr
}

// LocalAddr implements stream.Addresser.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr implements stream.Addresser.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

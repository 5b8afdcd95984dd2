// Package tcp provides the TCP stream transport: connect, listen and the
// connection adapter shared by clients and the server loop.
package tcp

import (
	"io"
	"net"
	"sync"

	"github.com/omochice/netstream/pkg/stream"
)

// Conn adapts a net.Conn to stream.Transport.
type Conn struct {
	conn net.Conn
	// r continues from bytes peeked before the connection was handed over.
	r         io.Reader
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn, r: conn}
}

// NewConnWithReader wraps conn but reads through r, which must drain any
// already-consumed bytes before reading from conn (a *bufio.Reader used to
// sniff the protocol, for instance).
func NewConnWithReader(conn net.Conn, r io.Reader) *Conn {
	if r == nil {
		r = conn
	}
	return &Conn{conn: conn, r: r}
}

// Read implements stream.Transport.
func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	return n, stream.IOFailure("read", err)
}

// Write implements stream.Transport.
func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.conn.Write(p)
	return n, stream.IOFailure("write", err)
}

// Close closes the socket. Repeated calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
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

// NetConn returns the wrapped connection.
func (c *Conn) NetConn() net.Conn {
	return c.conn
}

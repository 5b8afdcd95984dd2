// Package udp provides the datagram transport. One Write sends one
// datagram, one Read receives one datagram, and replies go to whoever sent
// the most recent datagram.
package udp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/omochice/netstream/pkg/stream"
)

// MaxDatagramSize is the largest payload a single Read can return.
const MaxDatagramSize = 65535

// ErrNoPeer is returned by Write before any peer is known.
var ErrNoPeer = errors.New("udp: no peer to send to")

// Endpoint describes either side of a UDP exchange. A receiving endpoint
// binds Host:BindPort and learns its peer from incoming datagrams; a sending
// endpoint binds an ephemeral port and targets Host:Port.
type Endpoint struct {
	Host           string
	Port           uint16
	BindForReceive bool
	BindPort       uint16
}

// ClientEndpoint targets host:port from an ephemeral local port.
func ClientEndpoint(host string, port uint16) Endpoint {
	return Endpoint{Host: host, Port: port}
}

// ServerEndpoint binds host:port and answers whoever writes to it.
func ServerEndpoint(host string, port uint16) Endpoint {
	return Endpoint{Host: host, Port: port, BindForReceive: true, BindPort: port}
}

func (e Endpoint) String() string {
	if e.BindForReceive {
		return "bind " + net.JoinHostPort(e.Host, strconv.Itoa(int(e.BindPort)))
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// Conn adapts a *net.UDPConn to stream.Transport.
type Conn struct {
	pc *net.UDPConn

	mu   sync.Mutex
	peer *net.UDPAddr

	closeOnce sync.Once
	closeErr  error
}

// Bind opens the socket described by ep.
func Bind(ep Endpoint) (*Conn, error) {
	if ep.BindForReceive {
		laddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(ep.Host, strconv.Itoa(int(ep.BindPort))))
		if err != nil {
			return nil, fmt.Errorf("udp: resolve %s: %w", ep, err)
		}
		pc, err := net.ListenUDP("udp", laddr)
		if err != nil {
			return nil, fmt.Errorf("udp: %s: %w", ep, stream.IOFailure("bind", err))
		}
		return &Conn{pc: pc}, nil
	}

	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(ep.Host, strconv.Itoa(int(ep.Port))))
	if err != nil {
		return nil, fmt.Errorf("%w: udp %s: %w", stream.ErrConnectFailure, ep, err)
	}
	pc, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("udp: %s: %w", ep, stream.IOFailure("bind", err))
	}
	return &Conn{pc: pc, peer: raddr}, nil
}

// Open binds ep and returns the first shared handle on the socket.
func Open(ep Endpoint) (*stream.Shared, error) {
	c, err := Bind(ep)
	if err != nil {
		return nil, err
	}
	return stream.NewShared(c), nil
}

// Read receives one datagram. Bytes beyond len(p) are discarded.
func (c *Conn) Read(p []byte) (int, error) {
	n, addr, err := c.pc.ReadFromUDP(p)
	if err != nil {
		return n, stream.IOFailure("read", err)
	}
	c.mu.Lock()
	c.peer = addr
	c.mu.Unlock()
	return n, nil
}

// Write sends p as one datagram to the current peer.
func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	peer := c.peer
	c.mu.Unlock()
	if peer == nil {
		return 0, ErrNoPeer
	}
	n, err := c.pc.WriteToUDP(p, peer)
	return n, stream.IOFailure("write", err)
}

// Close closes the socket. Repeated calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = stream.IOFailure("close", c.pc.Close())
	})
	return c.closeErr
}

// Peer returns the address the next Write goes to, or nil.
func (c *Conn) Peer() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peer == nil {
		return nil
	}
	return c.peer
}

// SetReadDeadline bounds the next Read.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.pc.SetReadDeadline(t)
}

// LocalAddr implements stream.Addresser.
func (c *Conn) LocalAddr() net.Addr {
	return c.pc.LocalAddr()
}

// RemoteAddr implements stream.Addresser; it reports the current peer.
func (c *Conn) RemoteAddr() net.Addr {
	return c.Peer()
}

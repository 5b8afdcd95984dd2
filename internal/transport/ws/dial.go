package ws

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gobwas/ws"

	"github.com/omochice/netstream/pkg/stream"
)

// DefaultDialTimeout bounds the TCP connect plus the opening handshake.
const DefaultDialTimeout = 5 * time.Second

// Endpoint names a WebSocket server.
type Endpoint struct {
	Host string
	Port uint16
	Path string
}

// URL returns the ws:// URL of the endpoint.
func (e Endpoint) URL() string {
	path := e.Path
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	return "ws://" + net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port))) + path
}

func (e Endpoint) String() string {
	return e.URL()
}

// DialConn performs the client handshake against ep.
func DialConn(ctx context.Context, ep Endpoint) (*Conn, error) {
	d := ws.Dialer{Timeout: DefaultDialTimeout}
	conn, br, _, err := d.Dial(ctx, ep.URL())
	if err != nil {
		return nil, fmt.Errorf("%w: ws %s: %w", stream.ErrConnectFailure, ep, err)
	}
	if br != nil {
		// The server already sent frames behind the handshake response.
		return newConn(conn, br, ws.StateClientSide), nil
	}
	return newConn(conn, nil, ws.StateClientSide), nil
}

// Dial performs the client handshake and returns the first shared handle.
func Dial(ctx context.Context, ep Endpoint) (*stream.Shared, error) {
	c, err := DialConn(ctx, ep)
	if err != nil {
		return nil, err
	}
	return stream.NewShared(c), nil
}

package ws

import (
	"fmt"
	"io"
	"net"

	"github.com/gobwas/ws"

	"github.com/omochice/netstream/pkg/stream"
)

// Upgrade performs the server handshake on an accepted connection.
// r, when non-nil, must yield every byte already consumed from conn (a
// reader used to sniff the request line) followed by the rest of conn.
func Upgrade(conn net.Conn, r io.Reader) (*Conn, error) {
	if r == nil {
		r = conn
	}
	rw := struct {
		io.Reader
		io.Writer
	}{r, conn}
	if _, err := ws.Upgrade(rw); err != nil {
		return nil, fmt.Errorf("ws: upgrade %s: %w", conn.RemoteAddr(), stream.IOFailure("upgrade", err))
	}
	return newConn(conn, r, ws.StateServerSide), nil
}

package server

import (
	"bufio"
	"bytes"
	"net"
	"time"

	"github.com/omochice/netstream/internal/transport/tcp"
	"github.com/omochice/netstream/internal/transport/ws"
	"github.com/omochice/netstream/pkg/stream"
)

type protocolType int

const (
	protocolTCP protocolType = iota
	protocolHTTP
)

func (p protocolType) String() string {
	if p == protocolHTTP {
		return "websocket"
	}
	return "tcp"
}

var httpMethods = [][]byte{
	[]byte("GET "),
	[]byte("POST"),
	[]byte("PUT "),
	[]byte("HEAD"),
}

// detectProtocol peeks at the first bytes to tell an HTTP upgrade request
// from a raw framed stream. The returned reader still holds the peeked bytes.
// A peer that stays silent for wait is treated as a raw stream.
func detectProtocol(conn net.Conn, wait time.Duration) (protocolType, *bufio.Reader, error) {
	reader := bufio.NewReader(conn)
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return protocolTCP, reader, err
	}
	defer conn.SetReadDeadline(time.Time{})

	// A framed stream starts with a binary length prefix, never with an
	// HTTP method.
	peek, err := reader.Peek(4)
	if err != nil {
		return protocolTCP, reader, err
	}
	for _, m := range httpMethods {
		if bytes.HasPrefix(peek, m) {
			return protocolHTTP, reader, nil
		}
	}
	return protocolTCP, reader, nil
}

// openStream wraps an accepted connection in the transport its first bytes
// ask for.
func openStream(conn net.Conn, detect bool, wait time.Duration) (*stream.Shared, protocolType, error) {
	if !detect {
		return stream.NewShared(tcp.NewConn(conn)), protocolTCP, nil
	}

	proto, reader, err := detectProtocol(conn, wait)
	if err != nil {
		// Fewer than four bytes before EOF, the wait or an error: let the
		// handler see what follows.
		return stream.NewShared(tcp.NewConnWithReader(conn, reader)), protocolTCP, nil
	}
	if proto == protocolHTTP {
		c, err := ws.Upgrade(conn, reader)
		if err != nil {
			return nil, proto, err
		}
		return stream.NewShared(c), proto, nil
	}
	return stream.NewShared(tcp.NewConnWithReader(conn, reader)), proto, nil
}

// Package stream provides the layered binary stream abstraction shared by
// every transport: a raw Transport, a reference-counted Shared handle,
// optional buffering and a typed codec with a configurable byte order.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
)

// Transport is the raw capability over a byte-oriented endpoint.
// Read and Write block until at least one byte is transferred, the end of
// the stream is reached or an I/O error occurs. Close is idempotent.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// Flusher is implemented by writers that hold bytes back.
type Flusher interface {
	Flush() error
}

// Addresser is implemented by transports bound to network addresses.
type Addresser interface {
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Order is a byte order usable both for decoding and for appending.
type Order interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

var (
	BigEndian    Order = binary.BigEndian
	LittleEndian Order = binary.LittleEndian
)

// ParseOrder maps "big"/"little" (and the usual aliases) to an Order.
func ParseOrder(raw string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "big", "bigendian", "big-endian", "be", "network":
		return BigEndian, nil
	case "little", "littleendian", "little-endian", "le":
		return LittleEndian, nil
	default:
		return nil, fmt.Errorf("stream: unknown byte order %q", raw)
	}
}

package tcp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/omochice/netstream/pkg/stream"
)

// DefaultDialTimeout bounds Connect when no timeout option is given.
const DefaultDialTimeout = 5 * time.Second

type options struct {
	dialTimeout time.Duration
	keepAlive   time.Duration
}

// Option configures Connect.
type Option func(*options)

// WithDialTimeout bounds how long Connect waits for the handshake.
// Zero or negative disables the bound; the context still applies.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// WithKeepAlive sets the TCP keep-alive period. Negative disables keep-alives.
func WithKeepAlive(d time.Duration) Option {
	return func(o *options) {
		o.keepAlive = d
	}
}

// Dial opens a TCP connection to ep.
func Dial(ctx context.Context, ep Endpoint, opts ...Option) (*Conn, error) {
	o := options{dialTimeout: DefaultDialTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	d := net.Dialer{KeepAlive: o.keepAlive}
	if o.dialTimeout > 0 {
		d.Timeout = o.dialTimeout
	}
	conn, err := d.DialContext(ctx, "tcp", ep.Address())
	if err != nil {
		return nil, fmt.Errorf("%w: tcp %s: %w", stream.ErrConnectFailure, ep, err)
	}
	return NewConn(conn), nil
}

// Connect dials ep and returns the first shared handle on the connection.
func Connect(ctx context.Context, ep Endpoint, opts ...Option) (*stream.Shared, error) {
	conn, err := Dial(ctx, ep, opts...)
	if err != nil {
		return nil, err
	}
	return stream.NewShared(conn), nil
}

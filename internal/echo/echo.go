// Package echo holds the request/reply handlers served by the programs:
// every framed string is answered with one framed string.
package echo

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/omochice/netstream/internal/server"
	"github.com/omochice/netstream/internal/transport/udp"
	"github.com/omochice/netstream/pkg/stream"
)

// Reply answers PING with PONG, UDP-PING with UDP-PONG and echoes anything else.
func Reply(msg string) string {
	switch msg {
	case "PING":
		return "PONG"
	case "UDP-PING":
		return "UDP-PONG"
	default:
		return msg
	}
}

// Handler returns a server.Handler that answers strings until the peer
// goes away.
func Handler(order stream.Order, opts ...stream.DataOption) server.Handler {
	return func(s *stream.Shared) error {
		r := stream.NewDataReader(s.Clone(), order, opts...)
		defer r.Close()
		w := stream.NewDataWriter(s.Clone(), order, opts...)
		defer w.Close()

		for {
			msg, err := r.ReadString()
			if err != nil {
				return err
			}
			if err := w.WriteString(Reply(msg)); err != nil {
				return err
			}
		}
	}
}

// ServeUDP answers datagrams on s until s is closed. A datagram that does
// not hold a valid string is logged and skipped; only a closed or failing
// socket ends the loop.
func ServeUDP(s *stream.Shared, order stream.Order, l zerolog.Logger, opts ...stream.DataOption) error {
	r := udp.NewReader(s.Clone(), order, opts...)
	defer r.Close()
	w := stream.NewDataWriter(s.Clone(), order, opts...)
	defer w.Close()

	for {
		msg, err := r.ReadString()
		switch {
		case err == nil:
		case errors.Is(err, stream.ErrInvalidEncoding),
			errors.Is(err, stream.ErrTooLong),
			errors.Is(err, stream.ErrUnexpectedEOF):
			l.Warn().Err(err).Stringer("remote", s.RemoteAddr()).Msg("dropping malformed datagram")
			continue
		case errors.Is(err, stream.ErrClosed):
			return nil
		default:
			return err
		}

		l.Debug().Str("msg", msg).Stringer("remote", s.RemoteAddr()).Msg("datagram received")
		if err := w.WriteString(Reply(msg)); err != nil {
			return err
		}
	}
}

package stream

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

var (
	// ErrClosed is returned by any operation attempted after close.
	ErrClosed = errors.New("stream: closed")
	// ErrConnectionReset is returned when the peer dropped a connection mid-operation.
	ErrConnectionReset = errors.New("stream: connection reset by peer")
	// ErrUnexpectedEOF is returned when a stream ends before a value is complete.
	ErrUnexpectedEOF = fmt.Errorf("stream: %w", io.ErrUnexpectedEOF)
	// ErrInvalidEncoding is returned for malformed UTF-8 or varint data.
	ErrInvalidEncoding = errors.New("stream: invalid encoding")
	// ErrTooLong is returned when a length prefix exceeds the configured limit.
	ErrTooLong = errors.New("stream: length exceeds limit")
	// ErrConnectFailure is returned when a connection could not be established.
	ErrConnectFailure = errors.New("stream: connect failed")
	// ErrListenerClosed is returned by Accept once the listener has been closed.
	ErrListenerClosed = errors.New("stream: listener closed")
)

// IOError reports a failure of the underlying OS primitive.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("stream: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IOFailure classifies err returned by a raw transport operation.
// io.EOF is passed through untouched so callers can detect end of stream.
func IOFailure(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case err == io.EOF:
		return io.EOF
	case errors.Is(err, ErrClosed), errors.Is(err, ErrConnectionReset):
		return err
	case errors.Is(err, net.ErrClosed), errors.Is(err, os.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		return ErrClosed
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNABORTED):
		return fmt.Errorf("%w: %s: %w", ErrConnectionReset, op, err)
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return err
	}
	return &IOError{Op: op, Err: err}
}

// endOfStream wraps an io.EOF observed while decoding a value.
// clean reports whether no byte of the value had been read yet.
func endOfStream(clean bool) error {
	if clean {
		return fmt.Errorf("%w: %w", ErrUnexpectedEOF, io.EOF)
	}
	return ErrUnexpectedEOF
}

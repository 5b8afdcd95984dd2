package udp

import (
	"bytes"
	"io"

	"github.com/gobwas/pool/pbytes"

	"github.com/omochice/netstream/pkg/stream"
)

// Reader decodes values one datagram at a time. A value never borrows
// bytes from a later datagram: one that runs past the end of its datagram
// fails with stream.ErrUnexpectedEOF, and whatever a datagram carries after
// the decoded value is dropped when the next one arrives.
type Reader struct {
	src   io.Reader
	order stream.Order
	opts  []stream.DataOption

	buf  []byte
	data bytes.Reader
	dec  *stream.DataReader
}

// NewReader wraps a datagram source such as a *Conn or a shared handle on one.
func NewReader(src io.Reader, order stream.Order, opts ...stream.DataOption) *Reader {
	r := &Reader{
		src:   src,
		order: order,
		opts:  opts,
		buf:   pbytes.GetLen(MaxDatagramSize),
	}
	r.dec = stream.NewDataReader(&r.data, order, opts...)
	return r
}

// Next receives one datagram and returns a decoder limited to it. The
// decoder is valid until the following call to Next.
func (r *Reader) Next() (*stream.DataReader, error) {
	if r.buf == nil {
		return nil, stream.ErrClosed
	}
	n, err := r.src.Read(r.buf)
	if err != nil {
		return nil, err
	}
	r.data.Reset(r.buf[:n])
	return r.dec, nil
}

// ReadString receives one datagram and decodes one string from it.
func (r *Reader) ReadString() (string, error) {
	d, err := r.Next()
	if err != nil {
		return "", err
	}
	return d.ReadString()
}

// ReadBytes receives one datagram and decodes one blob from it.
func (r *Reader) ReadBytes() ([]byte, error) {
	d, err := r.Next()
	if err != nil {
		return nil, err
	}
	return d.ReadBytes()
}

// Close releases the buffer and closes the source when it is an io.Closer.
func (r *Reader) Close() error {
	if r.buf == nil {
		return nil
	}
	pbytes.Put(r.buf)
	r.buf = nil
	r.data.Reset(nil)
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

package stream

import (
	"io"

	"github.com/gobwas/pool/pbytes"
)

// DefaultBufferSize is used when a non-positive size is requested.
const DefaultBufferSize = 4096

func bufferSize(size int) int {
	if size <= 0 {
		return DefaultBufferSize
	}
	return size
}

// BufferedReader adds a read-ahead buffer to any reader.
// Buffered bytes are always drained before the source is touched again, and
// a single Read never issues more than one read on the source.
type BufferedReader struct {
	src    io.Reader
	buf    []byte
	r, w   int
	err    error
	closed bool
}

// NewBufferedReader wraps src with a buffer of size bytes.
func NewBufferedReader(src io.Reader, size int) *BufferedReader {
	return &BufferedReader{
		src: src,
		buf: pbytes.GetLen(bufferSize(size)),
	}
}

// Read implements io.Reader.
func (b *BufferedReader) Read(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if b.r == b.w {
		if b.err != nil {
			return 0, b.readErr()
		}
		if len(p) >= len(b.buf) {
			// Nothing to prefetch for: read straight into p.
			return b.src.Read(p)
		}
		b.r, b.w = 0, 0
		n, err := b.src.Read(b.buf)
		if n < 0 || n > len(b.buf) {
			return 0, io.ErrNoProgress
		}
		b.w = n
		if n == 0 {
			return 0, err
		}
		// Hand out the bytes now; err is returned once they are drained.
		b.err = err
	}
	n := copy(p, b.buf[b.r:b.w])
	b.r += n
	return n, nil
}

func (b *BufferedReader) readErr() error {
	err := b.err
	b.err = nil
	return err
}

// Buffered returns the number of bytes that can be read without touching the source.
func (b *BufferedReader) Buffered() int {
	return b.w - b.r
}

// Close releases the buffer and closes the source when it is an io.Closer.
func (b *BufferedReader) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	pbytes.Put(b.buf)
	b.buf = nil
	b.r, b.w = 0, 0
	b.err = nil
	if c, ok := b.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// BufferedWriter accumulates writes and hands them to the destination when
// the buffer fills up, on Flush, and on Close.
type BufferedWriter struct {
	dst    io.Writer
	buf    []byte
	n      int
	closed bool
}

// NewBufferedWriter wraps dst with a buffer of size bytes.
func NewBufferedWriter(dst io.Writer, size int) *BufferedWriter {
	return &BufferedWriter{
		dst: dst,
		buf: pbytes.GetLen(bufferSize(size)),
	}
}

// Write implements io.Writer.
func (b *BufferedWriter) Write(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	written := 0
	for len(p) > b.Available() {
		var n int
		if b.n == 0 {
			// Large write with an empty buffer: skip the copy.
			var err error
			n, err = b.dst.Write(p)
			if err != nil {
				return written + n, err
			}
			if n == 0 {
				return written, io.ErrShortWrite
			}
		} else {
			n = copy(b.buf[b.n:], p)
			b.n += n
			if err := b.Flush(); err != nil {
				return written + n, err
			}
		}
		written += n
		p = p[n:]
	}
	n := copy(b.buf[b.n:], p)
	b.n += n
	written += n
	if b.n == len(b.buf) {
		if err := b.Flush(); err != nil {
			return written, err
		}
	}
	return written, nil
}

// Flush writes every buffered byte to the destination. On failure the
// unwritten bytes stay buffered, in order.
func (b *BufferedWriter) Flush() error {
	if b.closed {
		return ErrClosed
	}
	for b.n > 0 {
		n, err := b.dst.Write(b.buf[:b.n])
		if n > 0 {
			copy(b.buf, b.buf[n:b.n])
			b.n -= n
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	if f, ok := b.dst.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// Buffered returns the number of bytes waiting to be flushed.
func (b *BufferedWriter) Buffered() int {
	return b.n
}

// Available returns the free space left in the buffer.
func (b *BufferedWriter) Available() int {
	return len(b.buf) - b.n
}

// Close flushes, releases the buffer and closes the destination when it is
// an io.Closer. The destination is closed even if the flush failed.
func (b *BufferedWriter) Close() error {
	if b.closed {
		return nil
	}
	err := b.Flush()
	b.closed = true
	pbytes.Put(b.buf)
	b.buf = nil
	b.n = 0
	if c, ok := b.dst.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

package stream

import (
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// DefaultMaxLength caps decoded strings and blobs unless overridden.
const DefaultMaxLength = 16 << 20

// prefixLen is the size of the length prefix in front of strings and blobs.
const prefixLen = 4

// maxVarintLen is the longest base-128 encoding of a uint64.
const maxVarintLen = 10

type dataOptions struct {
	maxLength int
}

// DataOption configures a DataReader or DataWriter.
type DataOption func(*dataOptions)

// WithMaxLength caps the length prefix accepted for strings and blobs.
// Zero disables the cap.
func WithMaxLength(n int) DataOption {
	return func(o *dataOptions) {
		if n < 0 {
			n = 0
		}
		o.maxLength = n
	}
}

func newDataOptions(opts []DataOption) dataOptions {
	o := dataOptions{maxLength: DefaultMaxLength}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DataWriter encodes typed values onto a writer in a fixed byte order.
// Every value is handed to the writer as one unit, so datagram transports
// carry exactly one value (or framed string) per datagram.
type DataWriter struct {
	w       io.Writer
	order   Order
	opts    dataOptions
	scratch []byte
}

// NewDataWriter wraps w. The writer is owned by the DataWriter from now on.
func NewDataWriter(w io.Writer, order Order, opts ...DataOption) *DataWriter {
	return &DataWriter{
		w:       w,
		order:   order,
		opts:    newDataOptions(opts),
		scratch: make([]byte, 0, 16),
	}
}

// Order returns the configured byte order.
func (d *DataWriter) Order() Order {
	return d.order
}

func (d *DataWriter) emit(b []byte) error {
	for len(b) > 0 {
		n, err := d.w.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

func (d *DataWriter) WriteUint8(v uint8) error {
	return d.emit(append(d.scratch[:0], v))
}

func (d *DataWriter) WriteUint16(v uint16) error {
	return d.emit(d.order.AppendUint16(d.scratch[:0], v))
}

func (d *DataWriter) WriteUint32(v uint32) error {
	return d.emit(d.order.AppendUint32(d.scratch[:0], v))
}

func (d *DataWriter) WriteUint64(v uint64) error {
	return d.emit(d.order.AppendUint64(d.scratch[:0], v))
}

func (d *DataWriter) WriteInt8(v int8) error   { return d.WriteUint8(uint8(v)) }
func (d *DataWriter) WriteInt16(v int16) error { return d.WriteUint16(uint16(v)) }
func (d *DataWriter) WriteInt32(v int32) error { return d.WriteUint32(uint32(v)) }
func (d *DataWriter) WriteInt64(v int64) error { return d.WriteUint64(uint64(v)) }

func (d *DataWriter) WriteFloat32(v float32) error {
	return d.WriteUint32(math.Float32bits(v))
}

func (d *DataWriter) WriteFloat64(v float64) error {
	return d.WriteUint64(math.Float64bits(v))
}

func (d *DataWriter) WriteBool(v bool) error {
	if v {
		return d.WriteUint8(1)
	}
	return d.WriteUint8(0)
}

// WriteUvarint writes v as a protobuf base-128 varint.
func (d *DataWriter) WriteUvarint(v uint64) error {
	return d.emit(protowire.AppendVarint(d.scratch[:0], v))
}

// WriteVarint writes v zig-zag encoded as a varint.
func (d *DataWriter) WriteVarint(v int64) error {
	return d.WriteUvarint(protowire.EncodeZigZag(v))
}

// WriteString writes the UTF-8 bytes of s behind a 4-byte length prefix.
func (d *DataWriter) WriteString(s string) error {
	if err := d.checkLength(len(s)); err != nil {
		return err
	}
	frame := make([]byte, 0, prefixLen+len(s))
	frame = d.order.AppendUint32(frame, uint32(len(s)))
	frame = append(frame, s...)
	return d.emit(frame)
}

// WriteBytes writes p behind a 4-byte length prefix.
func (d *DataWriter) WriteBytes(p []byte) error {
	if err := d.checkLength(len(p)); err != nil {
		return err
	}
	frame := make([]byte, 0, prefixLen+len(p))
	frame = d.order.AppendUint32(frame, uint32(len(p)))
	frame = append(frame, p...)
	return d.emit(frame)
}

func (d *DataWriter) checkLength(n int) error {
	if uint64(n) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes", ErrTooLong, n)
	}
	if d.opts.maxLength > 0 && n > d.opts.maxLength {
		return fmt.Errorf("%w: %d > %d", ErrTooLong, n, d.opts.maxLength)
	}
	return nil
}

// Flush flushes the wrapped writer when it buffers; otherwise it is a no-op.
func (d *DataWriter) Flush() error {
	if f, ok := d.w.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// Close flushes and closes the wrapped writer when it is an io.Closer.
func (d *DataWriter) Close() error {
	err := d.Flush()
	if c, ok := d.w.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// DataReader decodes typed values from a reader in a fixed byte order.
// Each call blocks across as many reads as the value needs.
type DataReader struct {
	r     io.Reader
	order Order
	opts  dataOptions
	buf   [8]byte
}

// NewDataReader wraps r. The reader is owned by the DataReader from now on.
func NewDataReader(r io.Reader, order Order, opts ...DataOption) *DataReader {
	return &DataReader{
		r:     r,
		order: order,
		opts:  newDataOptions(opts),
	}
}

// Order returns the configured byte order.
func (d *DataReader) Order() Order {
	return d.order
}

// fill reads exactly len(p) bytes.
func (d *DataReader) fill(p []byte) error {
	n, err := io.ReadFull(d.r, p)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return endOfStream(n == 0)
	default:
		return err
	}
}

func (d *DataReader) ReadUint8() (uint8, error) {
	if err := d.fill(d.buf[:1]); err != nil {
		return 0, err
	}
	return d.buf[0], nil
}

func (d *DataReader) ReadUint16() (uint16, error) {
	if err := d.fill(d.buf[:2]); err != nil {
		return 0, err
	}
	return d.order.Uint16(d.buf[:2]), nil
}

func (d *DataReader) ReadUint32() (uint32, error) {
	if err := d.fill(d.buf[:4]); err != nil {
		return 0, err
	}
	return d.order.Uint32(d.buf[:4]), nil
}

func (d *DataReader) ReadUint64() (uint64, error) {
	if err := d.fill(d.buf[:8]); err != nil {
		return 0, err
	}
	return d.order.Uint64(d.buf[:8]), nil
}

func (d *DataReader) ReadInt8() (int8, error) {
	v, err := d.ReadUint8()
	return int8(v), err
}

func (d *DataReader) ReadInt16() (int16, error) {
	v, err := d.ReadUint16()
	return int16(v), err
}

func (d *DataReader) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

func (d *DataReader) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

func (d *DataReader) ReadFloat32() (float32, error) {
	v, err := d.ReadUint32()
	return math.Float32frombits(v), err
}

func (d *DataReader) ReadFloat64() (float64, error) {
	v, err := d.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadBool decodes one byte; any non-zero value is true.
func (d *DataReader) ReadBool() (bool, error) {
	v, err := d.ReadUint8()
	return v != 0, err
}

// ReadUvarint decodes a protobuf base-128 varint.
func (d *DataReader) ReadUvarint() (uint64, error) {
	var raw [maxVarintLen]byte
	for i := 0; i < maxVarintLen; i++ {
		if err := d.fill(raw[i : i+1]); err != nil {
			if i > 0 && errors.Is(err, io.EOF) {
				return 0, ErrUnexpectedEOF
			}
			return 0, err
		}
		if raw[i] < 0x80 {
			v, n := protowire.ConsumeVarint(raw[:i+1])
			if n < 0 {
				return 0, fmt.Errorf("%w: %w", ErrInvalidEncoding, protowire.ParseError(n))
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: varint overflows 64 bits", ErrInvalidEncoding)
}

// ReadVarint decodes a zig-zag encoded varint.
func (d *DataReader) ReadVarint() (int64, error) {
	v, err := d.ReadUvarint()
	if err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(v), nil
}

// ReadBytes decodes a length-prefixed blob.
func (d *DataReader) ReadBytes() ([]byte, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	if d.opts.maxLength > 0 && uint64(n) > uint64(d.opts.maxLength) {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLong, n, d.opts.maxLength)
	}
	if n == 0 {
		return []byte{}, nil
	}
	payload := make([]byte, n)
	if err := d.fill(payload); err != nil {
		if errors.Is(err, io.EOF) {
			// The prefix was read, so the value is incomplete either way.
			return nil, ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// ReadString decodes a length-prefixed UTF-8 string.
func (d *DataReader) ReadString() (string, error) {
	payload, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(payload) {
		return "", ErrInvalidEncoding
	}
	return string(payload), nil
}

// Close closes the wrapped reader when it is an io.Closer.
func (d *DataReader) Close() error {
	if c, ok := d.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

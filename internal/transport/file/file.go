// Package file exposes a local file as a one-directional stream transport.
package file

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/omochice/netstream/pkg/stream"
)

// Mode selects the single direction a file is opened for.
type Mode int

const (
	// ReadMode opens an existing file for reading only.
	ReadMode Mode = iota
	// WriteMode creates or truncates the file and opens it for writing only.
	WriteMode
)

func (m Mode) String() string {
	switch m {
	case ReadMode:
		return "read"
	case WriteMode:
		return "write"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

var (
	errNotReadable = errors.New("file opened for writing")
	errNotWritable = errors.New("file opened for reading")
)

// File adapts an *os.File to stream.Transport in one direction.
type File struct {
	f    *os.File
	mode Mode

	closeOnce sync.Once
	closeErr  error
}

// OpenFile opens path in the given mode.
func OpenFile(path string, mode Mode) (*File, error) {
	var (
		f   *os.File
		err error
	)
	switch mode {
	case ReadMode:
		f, err = os.Open(path)
	case WriteMode:
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	default:
		return nil, fmt.Errorf("file: open %s: unknown %s", path, mode)
	}
	if err != nil {
		return nil, fmt.Errorf("file: %w", stream.IOFailure("open", err))
	}
	return &File{f: f, mode: mode}, nil
}

// Open opens path in the given mode and returns the first shared handle.
func Open(path string, mode Mode) (*stream.Shared, error) {
	f, err := OpenFile(path, mode)
	if err != nil {
		return nil, err
	}
	return stream.NewShared(f), nil
}

// OpenReader is Open(path, ReadMode).
func OpenReader(path string) (*stream.Shared, error) {
	return Open(path, ReadMode)
}

// Create is Open(path, WriteMode).
func Create(path string) (*stream.Shared, error) {
	return Open(path, WriteMode)
}

// Read implements stream.Transport. It returns io.EOF at the end of file.
func (f *File) Read(p []byte) (int, error) {
	if f.mode != ReadMode {
		return 0, &stream.IOError{Op: "read", Err: errNotReadable}
	}
	n, err := f.f.Read(p)
	return n, stream.IOFailure("read", err)
}

// Write implements stream.Transport.
func (f *File) Write(p []byte) (int, error) {
	if f.mode != WriteMode {
		return 0, &stream.IOError{Op: "write", Err: errNotWritable}
	}
	n, err := f.f.Write(p)
	return n, stream.IOFailure("write", err)
}

// Close closes the file. Repeated calls return the first result.
func (f *File) Close() error {
	f.closeOnce.Do(func() {
		f.closeErr = stream.IOFailure("close", f.f.Close())
	})
	return f.closeErr
}

// Name returns the path the file was opened with.
func (f *File) Name() string {
	return f.f.Name()
}

// Mode returns the direction the file was opened for.
func (f *File) Mode() Mode {
	return f.mode
}

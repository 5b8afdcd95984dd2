package file_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/omochice/netstream/internal/transport/file"
	"github.com/omochice/netstream/pkg/stream"
)

func TestFile_Unbuffered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bin")

	out, err := file.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	w := stream.NewDataWriter(out, stream.BigEndian)
	if err := w.WriteString("Hello File!"); err != nil {
		t.Fatalf("WriteString() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(raw) != 4+len("Hello File!") || raw[3] != byte(len("Hello File!")) {
		t.Errorf("file content = %v", raw)
	}

	in, err := file.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	r := stream.NewDataReader(in, stream.BigEndian)
	defer r.Close()
	got, err := r.ReadString()
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	if got != "Hello File!" {
		t.Errorf("ReadString() = %q, want %q", got, "Hello File!")
	}
	if _, err := r.ReadString(); !errors.Is(err, io.EOF) {
		t.Errorf("ReadString() at end error = %v, want clean EOF", err)
	}
}

func TestFile_Buffered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test2.bin")

	out, err := file.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	w := stream.NewDataWriter(stream.NewBufferedWriter(out, 0), stream.BigEndian)
	if err := w.WriteString("Hello Buffer!"); err != nil {
		t.Fatalf("WriteString() error = %v", err)
	}

	// Nothing reaches the file before the flush.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("file size before flush = %d, want 0", info.Size())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	in, err := file.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	r := stream.NewDataReader(stream.NewBufferedReader(in, 0), stream.BigEndian)
	defer r.Close()
	got, err := r.ReadString()
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	if got != "Hello Buffer!" {
		t.Errorf("ReadString() = %q, want %q", got, "Hello Buffer!")
	}
}

func TestFile_WrongDirection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir.bin")

	out, err := file.OpenFile(path, file.WriteMode)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer out.Close()
	var ioErr *stream.IOError
	if _, err := out.Read(make([]byte, 1)); !errors.As(err, &ioErr) {
		t.Errorf("Read() on write-mode file error = %v, want *IOError", err)
	}

	in, err := file.OpenFile(path, file.ReadMode)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer in.Close()
	if _, err := in.Write([]byte("x")); !errors.As(err, &ioErr) {
		t.Errorf("Write() on read-mode file error = %v, want *IOError", err)
	}
}

func TestFile_Truncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trunc.bin")
	if err := os.WriteFile(path, []byte("old content that is long"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out, err := file.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	out.Write([]byte("new"))
	out.Close()

	raw, _ := os.ReadFile(path)
	if string(raw) != "new" {
		t.Errorf("file content = %q, want %q", raw, "new")
	}
}

func TestFile_OpenMissing(t *testing.T) {
	_, err := file.OpenReader(filepath.Join(t.TempDir(), "missing.bin"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("OpenReader() error = %v, want os.ErrNotExist", err)
	}
}

func TestFile_CloseIdempotent(t *testing.T) {
	f, err := file.OpenFile(filepath.Join(t.TempDir(), "c.bin"), file.WriteMode)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := f.Write([]byte("x")); !errors.Is(err, stream.ErrClosed) {
		t.Errorf("Write() after Close error = %v, want ErrClosed", err)
	}
}

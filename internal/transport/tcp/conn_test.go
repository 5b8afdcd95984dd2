package tcp_test

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/omochice/netstream/internal/transport/tcp"
	"github.com/omochice/netstream/pkg/stream"
)

func TestConn_ImplementsInterface(t *testing.T) {
	var _ stream.Transport = (*tcp.Conn)(nil)
	var _ stream.Addresser = (*tcp.Conn)(nil)
}

func TestConn_Read(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	go func() {
		server.Write([]byte("test message"))
		server.Close()
	}()

	data, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "test message" {
		t.Errorf("Read() = %q, want %q", string(data), "test message")
	}
}

func TestConn_Write(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	go func() {
		if _, err := conn.Write([]byte("hello")); err != nil {
			t.Errorf("Write() error = %v", err)
		}
	}()

	buf := make([]byte, 1024)
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("server read error: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("server received %q, want %q", string(buf[:n]), "hello")
	}
}

func TestConn_Close(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	conn := tcp.NewConn(client)

	if err := conn.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	_, err := conn.Read(make([]byte, 1))
	if !errors.Is(err, stream.ErrClosed) {
		t.Errorf("Read() after close error = %v, want ErrClosed", err)
	}
	_, err = conn.Write([]byte("x"))
	if !errors.Is(err, stream.ErrClosed) {
		t.Errorf("Write() after close error = %v, want ErrClosed", err)
	}
}

func TestConn_Addrs(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	if conn.RemoteAddr() == nil || conn.LocalAddr() == nil {
		t.Error("address accessors returned nil")
	}
}

func TestConnWithReader_KeepsPeekedBytes(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		server.Write([]byte("PEEKrest"))
		server.Close()
	}()

	br := bufio.NewReader(client)
	head, err := br.Peek(4)
	if err != nil {
		t.Fatalf("Peek() error = %v", err)
	}
	if string(head) != "PEEK" {
		t.Fatalf("Peek() = %q", head)
	}

	conn := tcp.NewConnWithReader(client, br)
	var sb strings.Builder
	if _, err := io.Copy(&sb, conn); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if sb.String() != "PEEKrest" {
		t.Errorf("read %q, want %q", sb.String(), "PEEKrest")
	}
}

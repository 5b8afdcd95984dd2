package ws_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/omochice/netstream/internal/transport/ws"
	"github.com/omochice/netstream/pkg/stream"
)

// serve accepts one connection, upgrades it and hands it to fn.
func serve(t *testing.T, fn func(*ws.Conn)) ws.Endpoint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		c, err := ws.Upgrade(conn, nil)
		if err != nil {
			conn.Close()
			return
		}
		fn(c)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return ws.Endpoint{Host: "127.0.0.1", Port: uint16(addr.Port), Path: "/stream"}
}

func TestConn_ImplementsInterface(t *testing.T) {
	var _ stream.Transport = (*ws.Conn)(nil)
	var _ stream.Addresser = (*ws.Conn)(nil)
}

func TestEndpoint_URL(t *testing.T) {
	tests := []struct {
		ep   ws.Endpoint
		want string
	}{
		{ws.Endpoint{Host: "127.0.0.1", Port: 8080, Path: "/ws"}, "ws://127.0.0.1:8080/ws"},
		{ws.Endpoint{Host: "localhost", Port: 80}, "ws://localhost:80/"},
		{ws.Endpoint{Host: "::1", Port: 9000, Path: "x"}, "ws://[::1]:9000/x"},
	}
	for _, tt := range tests {
		if got := tt.ep.URL(); got != tt.want {
			t.Errorf("URL() = %q, want %q", got, tt.want)
		}
	}
}

func TestConn_FramedExchange(t *testing.T) {
	done := make(chan error, 1)
	ep := serve(t, func(c *ws.Conn) {
		shared := stream.NewShared(c)
		defer shared.Close()
		r := stream.NewDataReader(shared.Clone(), stream.BigEndian)
		defer r.Close()
		msg, err := r.ReadString()
		if err != nil {
			done <- err
			return
		}
		done <- stream.NewDataWriter(shared, stream.BigEndian).WriteString("re:" + msg)
	})

	client, err := ws.Dial(context.Background(), ep)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	if err := stream.NewDataWriter(client, stream.BigEndian).WriteString("PING"); err != nil {
		t.Fatalf("WriteString() error = %v", err)
	}
	got, err := stream.NewDataReader(client, stream.BigEndian).ReadString()
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	if got != "re:PING" {
		t.Errorf("ReadString() = %q, want %q", got, "re:PING")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not finish")
	}
}

func TestConn_MessageSplitAcrossReads(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 100)
	ep := serve(t, func(c *ws.Conn) {
		defer c.Close()
		c.Write(payload)
	})

	client, err := ws.DialConn(context.Background(), ep)
	if err != nil {
		t.Fatalf("DialConn() error = %v", err)
	}
	defer client.Close()

	got := make([]byte, 0, len(payload))
	buf := make([]byte, 7)
	for len(got) < len(payload) {
		n, err := client.Read(buf)
		if err != nil {
			t.Fatalf("Read() error = %v after %d bytes", err, len(got))
		}
		got = append(got, buf[:n]...)
	}
	if !bytes.Equal(got, payload) {
		t.Error("reassembled payload differs")
	}
}

func TestConn_CloseEndsPeerStream(t *testing.T) {
	result := make(chan error, 1)
	ep := serve(t, func(c *ws.Conn) {
		defer c.Close()
		_, err := c.Read(make([]byte, 16))
		result <- err
	})

	client, err := ws.DialConn(context.Background(), ep)
	if err != nil {
		t.Fatalf("DialConn() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	select {
	case err := <-result:
		if !errors.Is(err, io.EOF) && !errors.Is(err, stream.ErrConnectionReset) {
			t.Errorf("peer Read() error = %v, want end of stream", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("peer Read() did not return")
	}
}

func TestUpgrade_WithPeekedReader(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	result := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		br := bufio.NewReader(conn)
		if head, err := br.Peek(4); err != nil || string(head) != "GET " {
			conn.Close()
			return
		}
		c, err := ws.Upgrade(conn, br)
		if err != nil {
			conn.Close()
			return
		}
		defer c.Close()
		msg, _ := stream.NewDataReader(c, stream.LittleEndian).ReadString()
		result <- msg
	}()

	addr := ln.Addr().(*net.TCPAddr)
	client, err := ws.Dial(context.Background(), ws.Endpoint{Host: "127.0.0.1", Port: uint16(addr.Port)})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()
	stream.NewDataWriter(client, stream.LittleEndian).WriteString("sniffed")

	select {
	case got := <-result:
		if got != "sniffed" {
			t.Errorf("server read %q, want %q", got, "sniffed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not read the message")
	}
}

func TestDial_Refused(t *testing.T) {
	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err := ws.Dial(context.Background(), ws.Endpoint{Host: "127.0.0.1", Port: uint16(port)})
	if !errors.Is(err, stream.ErrConnectFailure) {
		t.Fatalf("Dial() error = %v, want ErrConnectFailure", err)
	}
}

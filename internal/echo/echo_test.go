package echo_test

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/netstream/internal/echo"
	"github.com/omochice/netstream/internal/transport/udp"
	"github.com/omochice/netstream/pkg/stream"
)

func TestReply(t *testing.T) {
	tests := map[string]string{
		"PING":     "PONG",
		"UDP-PING": "UDP-PONG",
		"hello":    "hello",
		"":         "",
	}
	for in, want := range tests {
		if got := echo.Reply(in); got != want {
			t.Errorf("Reply(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHandler(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	done := make(chan error, 1)
	go func() {
		s := stream.NewShared(server)
		defer s.Close()
		done <- echo.Handler(stream.LittleEndian)(s)
	}()

	w := stream.NewDataWriter(client, stream.LittleEndian)
	r := stream.NewDataReader(client, stream.LittleEndian)
	for _, msg := range []string{"PING", "anything"} {
		if err := w.WriteString(msg); err != nil {
			t.Fatalf("WriteString() error = %v", err)
		}
		got, err := r.ReadString()
		if err != nil {
			t.Fatalf("ReadString() error = %v", err)
		}
		if want := echo.Reply(msg); got != want {
			t.Errorf("reply = %q, want %q", got, want)
		}
	}

	client.Close()
	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Errorf("Handler() error = %v, want end of stream", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Handler() did not return")
	}
}

func TestServeUDP(t *testing.T) {
	srv, err := udp.Bind(udp.ServerEndpoint("127.0.0.1", 0))
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	shared := stream.NewShared(srv)

	done := make(chan error, 1)
	go func() {
		done <- echo.ServeUDP(shared, stream.BigEndian, zerolog.Nop())
	}()

	port := uint16(srv.LocalAddr().(*net.UDPAddr).Port)
	client, err := udp.Open(udp.ClientEndpoint("127.0.0.1", port))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer client.Close()

	stream.NewDataWriter(client, stream.BigEndian).WriteString("UDP-PING")
	got, err := udp.NewReader(client, stream.BigEndian).ReadString()
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	if got != "UDP-PONG" {
		t.Errorf("reply = %q, want %q", got, "UDP-PONG")
	}

	shared.Shutdown()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeUDP() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ServeUDP() did not return after shutdown")
	}
}

func TestServeUDP_SkipsBadDatagrams(t *testing.T) {
	srv, err := udp.Bind(udp.ServerEndpoint("127.0.0.1", 0))
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	shared := stream.NewShared(srv)

	done := make(chan error, 1)
	go func() {
		done <- echo.ServeUDP(shared, stream.BigEndian, zerolog.Nop())
	}()

	port := uint16(srv.LocalAddr().(*net.UDPAddr).Port)
	client, err := udp.Bind(udp.ClientEndpoint("127.0.0.1", port))
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	defer client.Close()

	bad := map[string][]byte{
		"too long":  {0xff, 0xff, 0xff, 0xf0, 'a'},
		"truncated": {0x00, 0x00, 0x00, 0x64, 'a', 'b', 'c'},
		"not utf-8": {0x00, 0x00, 0x00, 0x02, 0xff, 0xfe},
		"empty":     {},
	}
	for name, datagram := range bad {
		if _, err := client.Write(datagram); err != nil {
			t.Fatalf("%s: Write() error = %v", name, err)
		}
	}

	stream.NewDataWriter(client, stream.BigEndian).WriteString("UDP-PING")
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := udp.NewReader(client, stream.BigEndian).ReadString()
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	if got != "UDP-PONG" {
		t.Errorf("reply = %q, want %q", got, "UDP-PONG")
	}

	select {
	case err := <-done:
		t.Fatalf("ServeUDP() returned early: %v", err)
	default:
	}

	shared.Shutdown()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeUDP() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ServeUDP() did not return after shutdown")
	}
}

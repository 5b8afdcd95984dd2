// Package demo runs the end-to-end walkthrough: a TCP request/reply through
// the server loop, a UDP request/reply, and a file round trip with and
// without buffering.
package demo

import (
	"context"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/netstream/internal/config"
	"github.com/omochice/netstream/internal/executor"
	"github.com/omochice/netstream/internal/server"
	"github.com/omochice/netstream/internal/transport/file"
	"github.com/omochice/netstream/internal/transport/tcp"
	"github.com/omochice/netstream/internal/transport/udp"
	"github.com/omochice/netstream/pkg/stream"
)

// replyTimeout bounds how long a client waits for an answer.
const replyTimeout = 5 * time.Second

// syncWriter serializes lines printed from several goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format+"\n", args...)
}

// Run executes every scenario in order and stops at the first failure.
// Files are written under dir.
func Run(ctx context.Context, cfg config.Config, l zerolog.Logger, out io.Writer, dir string) error {
	w := &syncWriter{w: out}
	if err := runTCP(ctx, cfg, l, w); err != nil {
		return fmt.Errorf("tcp: %w", err)
	}
	if err := runUDP(cfg, l, w); err != nil {
		return fmt.Errorf("udp: %w", err)
	}
	if err := runFile(cfg, filepath.Join(dir, "test.bin"), w); err != nil {
		return fmt.Errorf("file: %w", err)
	}
	if err := runBufferedFile(cfg, filepath.Join(dir, "test2.bin"), w); err != nil {
		return fmt.Errorf("buffered file: %w", err)
	}
	return nil
}

// runTCP serves one request through the accept loop, then clears the running
// flag and waits for the loop to stop.
func runTCP(ctx context.Context, cfg config.Config, l zerolog.Logger, w *syncWriter) error {
	order, opts := cfg.Order(), cfg.DataOptions()

	exec := executor.NewGo(executor.WithLogger(l))
	defer exec.Close()

	handler := func(s *stream.Shared) error {
		in := stream.NewDataReader(s.Clone(), order, opts...)
		defer in.Close()
		outw := stream.NewDataWriter(s.Clone(), order, opts...)
		defer outw.Close()

		msg, err := in.ReadString()
		if err != nil {
			return err
		}
		w.printf("[TCP-Server] Received: %s", msg)
		if err := outw.WriteString("PONG"); err != nil {
			return err
		}
		return outw.Flush()
	}

	srv := server.New(cfg.ServerConfig(), exec, handler, server.WithLogger(l))
	if err := srv.Listen(); err != nil {
		return err
	}
	var running atomic.Bool
	running.Store(true)
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(&running)
	}()
	defer func() {
		running.Store(false)
		<-done
	}()

	client, err := tcp.Connect(ctx, srv.Endpoint(), tcp.WithDialTimeout(cfg.TCP.DialTimeout))
	if err != nil {
		return err
	}
	defer client.Close()
	if c, ok := client.Transport().(*tcp.Conn); ok {
		c.NetConn().SetReadDeadline(time.Now().Add(replyTimeout))
	}

	outw := stream.NewDataWriter(client.Clone(), order, opts...)
	defer outw.Close()
	in := stream.NewDataReader(client.Clone(), order, opts...)
	defer in.Close()

	if err := outw.WriteString("PING"); err != nil {
		return err
	}
	if err := outw.Flush(); err != nil {
		return err
	}
	reply, err := in.ReadString()
	if err != nil {
		return err
	}
	w.printf("[TCP-Client] Received: %s", reply)
	return nil
}

// runUDP answers one datagram from a client socket.
func runUDP(cfg config.Config, l zerolog.Logger, w *syncWriter) error {
	order, opts := cfg.Order(), cfg.DataOptions()

	srvConn, err := udp.Bind(cfg.UDPServerEndpoint())
	if err != nil {
		return err
	}
	srv := stream.NewShared(srvConn)
	defer srv.Close()
	srvConn.SetReadDeadline(time.Now().Add(replyTimeout))

	served := make(chan error, 1)
	go func() {
		in := udp.NewReader(srv.Clone(), order, opts...)
		defer in.Close()
		msg, err := in.ReadString()
		if err != nil {
			served <- err
			return
		}
		w.printf("[UDP-Server] Received: %s", msg)
		served <- stream.NewDataWriter(srv, order, opts...).WriteString("UDP-PONG")
	}()

	port := uint16(srvConn.LocalAddr().(*net.UDPAddr).Port)
	clientConn, err := udp.Bind(cfg.UDPClientEndpointOn(port))
	if err != nil {
		return err
	}
	client := stream.NewShared(clientConn)
	defer client.Close()
	clientConn.SetReadDeadline(time.Now().Add(replyTimeout))

	if err := stream.NewDataWriter(client, order, opts...).WriteString("UDP-PING"); err != nil {
		return err
	}
	reply, err := udp.NewReader(client, order, opts...).ReadString()
	if err != nil {
		return err
	}
	w.printf("[UDP-Client] Received: %s", reply)

	if err := <-served; err != nil {
		l.Warn().Err(err).Msg("udp server side failed")
		return err
	}
	return nil
}

// runFile writes one string to path without buffering and reads it back.
func runFile(cfg config.Config, path string, w *syncWriter) error {
	order, opts := cfg.Order(), cfg.DataOptions()

	sink, err := file.Create(path)
	if err != nil {
		return err
	}
	dout := stream.NewDataWriter(sink, order, opts...)
	if err := dout.WriteString("Hello File!"); err != nil {
		dout.Close()
		return err
	}
	if err := dout.Close(); err != nil {
		return err
	}

	src, err := file.OpenReader(path)
	if err != nil {
		return err
	}
	din := stream.NewDataReader(src, order, opts...)
	defer din.Close()
	s, err := din.ReadString()
	if err != nil {
		return err
	}
	w.printf("[File] Read: %s", s)
	return nil
}

// runBufferedFile is runFile with buffers on both sides.
func runBufferedFile(cfg config.Config, path string, w *syncWriter) error {
	order, opts := cfg.Order(), cfg.DataOptions()

	sink, err := file.Create(path)
	if err != nil {
		return err
	}
	dout := stream.NewDataWriter(stream.NewBufferedWriter(sink, cfg.Codec.BufferSize), order, opts...)
	if err := dout.WriteString("Hello Buffer!"); err != nil {
		dout.Close()
		return err
	}
	if err := dout.Close(); err != nil {
		return err
	}

	src, err := file.OpenReader(path)
	if err != nil {
		return err
	}
	din := stream.NewDataReader(stream.NewBufferedReader(src, cfg.Codec.BufferSize), order, opts...)
	defer din.Close()
	s, err := din.ReadString()
	if err != nil {
		return err
	}
	w.printf("[File-Buffered] Read: %s", s)
	return nil
}

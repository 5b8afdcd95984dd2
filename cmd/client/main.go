package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/omochice/netstream/internal/config"
	"github.com/omochice/netstream/internal/logging"
	"github.com/omochice/netstream/internal/transport/tcp"
	"github.com/omochice/netstream/internal/transport/udp"
	"github.com/omochice/netstream/internal/transport/ws"
	"github.com/omochice/netstream/pkg/stream"
)

// stringReader is satisfied by both stream.DataReader and udp.Reader.
type stringReader interface {
	ReadString() (string, error)
	Close() error
}

func main() {
	configPath := flag.String("config", "", "Path to a TOML config file")
	addr := flag.String("addr", "", "Server address (e.g., 127.0.0.1:9050)")
	useWS := flag.Bool("ws", false, "Connect over WebSocket")
	useUDP := flag.Bool("udp", false, "Send datagrams instead of opening a TCP stream")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger := logging.New("netstream-client", cfg.Log)
			logger.Fatal().Err(err).Msg("failed to load config")
		}
		cfg = loaded
	}
	log := logging.New("netstream-client", cfg.Log)

	if *addr != "" {
		ep, err := tcp.ParseEndpoint(*addr)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid -addr")
		}
		cfg.TCP.Host, cfg.TCP.Port = ep.Host, ep.Port
		cfg.UDP.Host, cfg.UDP.Port = ep.Host, ep.Port
		cfg.WS.Host, cfg.WS.Port = ep.Host, ep.Port
	}

	var (
		conn   *stream.Shared
		reader stringReader
		err    error
	)
	order, opts := cfg.Order(), cfg.DataOptions()
	switch {
	case *useWS:
		conn, err = ws.Dial(context.Background(), cfg.WSEndpoint())
		if err == nil {
			reader = stream.NewDataReader(conn.Clone(), order, opts...)
		}
	case *useUDP:
		conn, err = udp.Open(cfg.UDPClientEndpoint())
		if err == nil {
			reader = udp.NewReader(conn.Clone(), order, opts...)
		}
	default:
		conn, err = tcp.Connect(context.Background(), cfg.TCPEndpoint(), tcp.WithDialTimeout(cfg.TCP.DialTimeout))
		if err == nil {
			reader = stream.NewDataReader(stream.NewBufferedReader(conn.Clone(), cfg.Codec.BufferSize), order, opts...)
		}
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer conn.Close()
	defer reader.Close()
	writer := stream.NewDataWriter(conn.Clone(), order, opts...)
	defer writer.Close()

	log.Info().Stringer("remote", conn.RemoteAddr()).Msg("connected")

	// Read from stdin and send messages
	fmt.Println("Type your messages (or 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			break
		}

		if err := writer.WriteString(text); err != nil {
			log.Error().Err(err).Msg("failed to send message")
			break
		}
		reply, err := reader.ReadString()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Error().Err(err).Msg("failed to read reply")
			}
			break
		}
		fmt.Println(reply)
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("error reading input")
	}
	log.Info().Msg("disconnected")
}

package main

import (
	"flag"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/omochice/netstream/internal/config"
	"github.com/omochice/netstream/internal/echo"
	"github.com/omochice/netstream/internal/executor"
	"github.com/omochice/netstream/internal/logging"
	"github.com/omochice/netstream/internal/server"
	"github.com/omochice/netstream/internal/transport/tcp"
	"github.com/omochice/netstream/internal/transport/udp"
	"github.com/omochice/netstream/pkg/stream"
)

func main() {
	configPath := flag.String("config", "", "Path to a TOML config file")
	addr := flag.String("addr", "", "TCP address to listen on (e.g., 127.0.0.1:9050)")
	detectWS := flag.Bool("ws", false, "Also accept WebSocket clients on the TCP port")
	withUDP := flag.Bool("udp", false, "Also answer UDP datagrams on the UDP port")
	workers := flag.Int("workers", -1, "Worker pool size; 0 runs one goroutine per connection")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger := logging.New("netstream-server", cfg.Log)
			logger.Fatal().Err(err).Msg("failed to load config")
		}
		cfg = loaded
	}
	log := logging.New("netstream-server", cfg.Log)

	if *addr != "" {
		ep, err := tcp.ParseEndpoint(*addr)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid -addr")
		}
		cfg.TCP.Host, cfg.TCP.Port = ep.Host, ep.Port
	}
	if *detectWS {
		cfg.Server.DetectWebSocket = true
	}
	if *workers >= 0 {
		cfg.Server.Workers = *workers
	}

	exec := newExecutor(cfg.Server.Workers, log)
	srv := server.New(cfg.ServerConfig(), exec, echo.Handler(cfg.Order(), cfg.DataOptions()...), server.WithLogger(log))
	if err := srv.Listen(); err != nil {
		log.Fatal().Err(err).Msg("failed to listen")
	}

	var udpStream *stream.Shared
	if *withUDP {
		var err error
		udpStream, err = udp.Open(cfg.UDPServerEndpoint())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to bind udp")
		}
		go func() {
			if err := echo.ServeUDP(udpStream, cfg.Order(), log, cfg.DataOptions()...); err != nil {
				log.Error().Err(err).Msg("udp loop stopped")
			}
		}()
		log.Info().Str("addr", udpStream.LocalAddr().String()).Msg("answering udp")
	}

	var running atomic.Bool
	running.Store(true)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		running.Store(false)
	}()

	if err := srv.Serve(&running); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	if udpStream != nil {
		udpStream.Shutdown()
	}
	log.Info().Msg("server stopped")
}

func newExecutor(workers int, log zerolog.Logger) executor.Executor {
	if workers > 0 {
		return executor.NewPool(workers, executor.WithLogger(log))
	}
	return executor.NewGo(executor.WithLogger(log))
}

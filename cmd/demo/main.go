package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/omochice/netstream/internal/config"
	"github.com/omochice/netstream/internal/demo"
	"github.com/omochice/netstream/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to a TOML config file")
	dir := flag.String("dir", ".", "Directory for test.bin and test2.bin")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger := logging.New("netstream-demo", cfg.Log)
			logger.Fatal().Err(err).Msg("failed to load config")
		}
		cfg = loaded
	}
	log := logging.New("netstream-demo", cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := demo.Run(ctx, cfg, log, os.Stdout, *dir); err != nil {
		log.Fatal().Err(err).Msg("demo failed")
	}
}

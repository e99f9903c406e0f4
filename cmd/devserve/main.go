package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/akave-ai/devserve/internal/config"
	"github.com/akave-ai/devserve/internal/console"
	"github.com/akave-ai/devserve/internal/logger"
	"github.com/akave-ai/devserve/internal/server"
	"github.com/akave-ai/devserve/internal/telemetry"
)

func main() {
	fs := flag.NewFlagSet("devserve", flag.ExitOnError)
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(fs)
	if err != nil {
		boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("could not load config")
	}

	log := logger.New(cfg.Observability)

	apm, err := telemetry.NewApplication(cfg.Observability, log)
	if err != nil {
		log.Warn().Err(err).Msg("new relic disabled")
		apm = nil
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Server.Addr()).Msg("listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, server.Options{
		Console: console.New(os.Stdout),
		Logger:  log,
		APM:     apm,
	})
	if err := srv.Serve(ctx, ln); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

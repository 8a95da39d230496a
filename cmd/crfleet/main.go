package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/crfleet/cmd/crfleet/commands"
)

// Set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	setupLogging()

	// An interrupted run stays journaled and can be continued with "crfleet resume".
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := commands.Execute(ctx, Version, Commit, BuildDate)
	if ctx.Err() != nil {
		log.Info().Msg("Interrupted, leaving in-flight runs resumable")
	}
	if err != nil {
		log.Error().Err(err).Msg("crfleet failed")
		stop()
		os.Exit(1)
	}
}

// setupLogging points the global zerolog logger at stderr. LOG_LEVEL
// overrides the info default.
func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

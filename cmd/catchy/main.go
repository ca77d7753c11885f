package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"catchy/internal/config"
	"catchy/internal/console"
	"catchy/internal/server"
)

func main() {
	// Parse flags
	fs := pflag.NewFlagSet("catchy", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: catchy [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Example: catchy --rest api.example.com --soap services.example.com\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	configPath, _ := fs.GetString(config.FlagConfig)

	// Load config
	cfg, err := config.Load(configPath, fs)
	if err != nil {
		// Basic logger for startup errors
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fs.Usage()
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel)
	logger.Info().
		Str("config", configPath).
		Str("addr", cfg.Addr()).
		Int("strategies", len(cfg.Strategies)).
		Msg("starting catchy")

	ui := console.NewStdoutUI()
	uiCtx, stopUI := context.WithCancel(context.Background())
	var workers errgroup.Group
	workers.Go(func() error {
		return ui.Run(uiCtx)
	})
	ui.Welcome()

	// Create server
	srv, err := server.New(cfg, ui, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create server")
	}
	ui.HandledHosts(srv.HandledHosts())

	// Start server
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
	ui.Ready(srv.Addr())

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}

	stopUI()
	if err := workers.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("console error")
	}
}

// setupLogger configures the zerolog logger.
// Logs go to stderr so they do not interleave with the console messages on stdout.
func setupLogger(level string) zerolog.Logger {
	// Set log level
	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	// Configure output
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

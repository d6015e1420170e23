package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"daoquery/internal/config"
	"daoquery/internal/server"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.json", "path to config file")
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	// Basic logger for startup errors
	startupLog := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := godotenv.Load(*envFile); err != nil {
		startupLog.Debug().Str("file", *envFile).Msg("no .env file loaded")
	}

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		startupLog.Fatal().Err(err).Msg("failed to load config")
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel)
	logger.Info().
		Str("config", *configPath).
		Str("host", cfg.Host).
		Int("rpcPort", cfg.RPCPort).
		Int("wsPort", cfg.WSPort).
		Strs("chains", cfg.ChainIDs()).
		Msg("starting daoquery")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create server")
	}

	for _, chainCfg := range cfg.Chains {
		srv.AddChain(chainCfg)
	}

	// Start server
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown with timeout
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
}

// setupLogger configures the zerolog logger
func setupLogger(level string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || logLevel == zerolog.NoLevel {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

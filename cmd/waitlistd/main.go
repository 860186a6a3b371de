package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/waitlist-service/internal/config"
	"github.com/example/waitlist-service/internal/logger"
	"github.com/example/waitlist-service/internal/store/factory"
	"github.com/example/waitlist-service/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "waitlistd").Logger()

	client, err := factory.New(cfg.Store, log.With().Str("component", "store").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise submission store")
	}

	server, err := web.NewServer(client, *cfg, log.With().Str("component", "web").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise web server")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("web server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}

	log.Info().Msg("waitlistd stopped")
}

func fail(stage string, err error) {
	fmt.Fprintf(os.Stderr, "waitlistd: %s: %v\n", stage, err)
	os.Exit(1)
}

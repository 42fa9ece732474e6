package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/avatarrealms/arc-bot/internal/bot"
	"github.com/avatarrealms/arc-bot/internal/config"
	"github.com/avatarrealms/arc-bot/internal/logger"
	"github.com/avatarrealms/arc-bot/internal/metrics"
	"github.com/avatarrealms/arc-bot/internal/ops"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info().Msg("starting ARC community bot")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create and start the bot
	b, err := bot.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to create bot")
		os.Exit(1)
	}

	if err := b.Start(ctx); err != nil {
		log.Error().Err(err).Msg("failed to start bot")
		os.Exit(1)
	}

	// Ops HTTP server: health check and metrics
	go func() {
		if err := ops.Serve(ctx, log.With().Str("component", "ops").Logger(), cfg.OpsAddr); err != nil {
			log.Error().Err(err).Msg("ops server failed")
		}
	}()

	log.Info().Msg("bot is running, press Ctrl+C to stop")
	<-ctx.Done()

	log.Info().Msg("shutting down")
	if err := b.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("bot stopped")
}

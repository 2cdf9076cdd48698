package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/venue-booking/internal/config"
	"github.com/iliyamo/venue-booking/internal/queue"
)

// worker consumes booking events from RabbitMQ and appends them to
// <BOOKING_LOG_DIR>/booking.log.
func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	config.LoadDotEnv(log)
	cfg := config.LoadEventsConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &queue.Consumer{URL: cfg.RabbitURL, LogDir: cfg.LogDir, Log: log.With("component", "worker")}
	log.Info("booking worker started", "queues", queue.Queues, "log_dir", cfg.LogDir)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped", "err", err)
		os.Exit(1)
	}
	log.Info("booking worker stopped")
}

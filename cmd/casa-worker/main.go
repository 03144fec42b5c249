package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"casa/internal/cli"
	"casa/internal/services"
	"casa/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()

	logger.Info("Starting casa-worker")

	store := cli.OpenStore(logger, cfg.SQLiteDBPath)
	defer store.Close()

	ledger := services.NewLedgerService(store)
	rollover := worker.NewRolloverWorker(store, ledger, cfg.RolloverInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rollover.Run(ctx)
	})

	// The settlement archive consumer needs a broker; the rollover
	// sweep runs regardless
	if amqpClient := cli.ConnectAMQP(logger, cfg); amqpClient != nil {
		defer amqpClient.Close()

		g.Go(func() error {
			logger.Info("Consuming expense events", "queue", cfg.AMQPQueue)
			return amqpClient.ConsumeEvents(ctx, rollover.HandleEvent)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

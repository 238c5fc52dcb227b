package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kamienica/internal/config"
	"kamienica/internal/core"
	"kamienica/internal/log"
	"kamienica/internal/review"
	"kamienica/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.Setup(log.ComponentWorker, log.LevelFromEnv())

	logger.Info("Starting review-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	client, err := review.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(msg *review.Message) error {
		// Items resolved between publish and delivery are dropped here.
		tx, err := repo.TransactionByExternalID(ctx, msg.ExternalID)
		if errors.Is(err, storage.ErrTransactionNotFound) {
			slog.WarnContext(ctx, "Review item refers to an unknown transaction",
				"external_id", msg.ExternalID)
			return nil
		}
		if err != nil {
			return err
		}
		if tx.Status == core.StatusProcessed || tx.Status == core.StatusManual {
			slog.InfoContext(ctx, "Review item already resolved",
				"external_id", msg.ExternalID,
				"status", string(tx.Status))
			return nil
		}

		slog.InfoContext(ctx, "Transaction awaiting manual review",
			"external_id", msg.ExternalID,
			"posting_date", msg.PostingDate.Format("2006-01-02"),
			"amount", msg.Amount,
			"category_status", msg.CategoryStatus,
			"unit_status", msg.UnitStatus,
			"trace", msg.Trace)
		return nil
	}

	go func() {
		if err := client.Consume(ctx, handler); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()

	// Give the consumer a moment to finish the in-flight delivery.
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}

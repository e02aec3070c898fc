package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mangrove-ai/mangrove/internal/config"
	"github.com/mangrove-ai/mangrove/internal/queue"
	"github.com/mangrove-ai/mangrove/internal/setup"
	"github.com/mangrove-ai/mangrove/internal/storage"
	"github.com/mangrove-ai/mangrove/pkg/logger"
	"github.com/mangrove-ai/mangrove/pkg/logger/console"
)

func main() {
	config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if cfg.RabbitURL == "" {
		panic("worker requires RABBITMQ_URL")
	}

	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: cfg.Debug}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var stores storage.Stores
	if cfg.StorageBackend == "memory" {
		stores = storage.NewStores(nil, cfg)
	} else {
		pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", "err", err)
		}
		defer pool.Close()
		stores = storage.NewStores(pool, cfg)
	}

	aiClient, err := setup.NewAIClient(cfg)
	if err != nil {
		logger.Fatal("Failed to create AI client", "err", err)
	}
	eng, err := setup.NewEngine(cfg, stores, aiClient, nil)
	if err != nil {
		logger.Fatal("Failed to build engine", "err", err)
	}

	conn, err := queue.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.Declare(ch); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	consumer := queue.NewConsumer(ch, func(ctx context.Context, msg queue.IngestMessage) error {
		start := time.Now()
		err := eng.ProcessDocument(ctx, msg.DocumentID)

		metrics := aiClient.GetMetrics()
		aiDuration := time.Duration(metrics.DurationMs) * time.Millisecond
		logger.Info("AI Metrics",
			"input_tokens", metrics.InputTokens,
			"output_tokens", metrics.OutputTokens,
			"total_tokens", metrics.TotalTokens,
			"duration", formatDuration(aiDuration))
		logger.Info("Processing time", "duration", formatDuration(time.Since(start)))
		aiClient.ResetMetrics()
		return err
	})

	if err := consumer.Run(ctx); err != nil {
		logger.Fatal("Consumer failed", "err", err)
	}
	logger.Info("Shutdown signal received, exiting...")
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/mangrove-ai/mangrove/internal/config"
	"github.com/mangrove-ai/mangrove/internal/queue"
	"github.com/mangrove-ai/mangrove/internal/server"
	"github.com/mangrove-ai/mangrove/internal/setup"
	"github.com/mangrove-ai/mangrove/internal/storage"
	"github.com/mangrove-ai/mangrove/pkg/engine"
	"github.com/mangrove-ai/mangrove/pkg/logger"
	"github.com/mangrove-ai/mangrove/pkg/logger/console"
)

func main() {
	config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet.
		panic(err)
	}

	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: cfg.Debug}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var stores storage.Stores
	if cfg.StorageBackend == "memory" {
		stores = storage.NewStores(nil, cfg)
	} else {
		if err := storage.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("Failed to run migrations", "err", err)
		}
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

	// With RabbitMQ configured documents are handed to workers;
	// otherwise the server ingests inline.
	var publish engine.PublishFunc
	if cfg.RabbitURL != "" {
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
		publish = publishFunc(ch)
	} else {
		logger.Warn("RABBITMQ_URL not set, ingesting documents inline")
	}

	eng, err := setup.NewEngine(cfg, stores, aiClient, publish)
	if err != nil {
		logger.Fatal("Failed to build engine", "err", err)
	}

	srv := server.New(eng, cfg.Port)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown engine", "err", err)
	}
}

func publishFunc(ch *amqp091.Channel) engine.PublishFunc {
	return func(ctx context.Context, tenant, documentID string) error {
		return queue.Publish(ctx, ch, queue.IngestMessage{Tenant: tenant, DocumentID: documentID})
	}
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cuworking/internal/notifications"
	"cuworking/pkg/config"
	"cuworking/pkg/kafka"
	kafka_config "cuworking/pkg/kafka/config"
	kafka_middleware "cuworking/pkg/kafka/middleware"
)

const (
	ServiceName = "notifier"
	dedupTTL    = 24 * time.Hour
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetRedis()
	defer cfg.GracefulShutdown()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.GracefulShutdown()
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	dedup := initDeduplicator(cfg)
	if memory, ok := dedup.(*notifications.MemoryDeduplicator); ok {
		defer memory.Stop()
	}

	handler := notifications.NewHandler(
		notifications.NewLogNotifier(cfg.Log),
		dedup,
		cfg.Log,
	)

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.ReservationEventsTopic,
		cfg.NotifierGroupID,
		cfg.ReservationEventsDLQTopic,
		handler.Handle,
		cfg.Log,
	)
	if err != nil {
		cfg.GracefulShutdown()
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(metrics.ConsumerMiddleware())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		cfg.Log.Info("Shutdown signal received", "signal", sig)
		cancel()
	}()

	cfg.Log.Info("Starting notifier",
		"topic", cfg.ReservationEventsTopic,
		"group_id", cfg.NotifierGroupID,
	)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped unexpectedly", "error", err)
	}

	cfg.Log.Info("Shutting down notifier")
	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close Kafka consumer", "error", err)
	}
	metrics.Log(cfg.Log)
}

func initDeduplicator(cfg *config.Config) notifications.Deduplicator {
	if cfg.Client.Redis != nil {
		cfg.Log.Info("Deduplicating notifications in Redis", "ttl", dedupTTL)
		return notifications.NewRedisDeduplicator(cfg.Client.Redis, dedupTTL)
	}
	cfg.Log.Warn("Redis not configured, deduplicating notifications in memory")
	return notifications.NewMemoryDeduplicator(dedupTTL)
}

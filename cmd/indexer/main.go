// Command indexer consumes documents from the ingest topic, indexes them
// into vector-tree columns and announces committed collections on the
// cache-invalidation topic.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/ingest/consumer"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service",
		"strategy", cfg.Indexer.Strategy,
		"workers", cfg.Indexer.Workers,
		"batch_size", cfg.Indexer.BatchSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker(cfg.Server.HealthTimeout)
	var met *metrics.Metrics
	if cfg.Metrics.Enabled {
		met = metrics.New(prometheus.DefaultRegisterer)
		shutdown := metrics.StartServer(cfg.Metrics.Port, map[string]http.Handler{
			"GET /health/live":  checker.LiveHandler(),
			"GET /health/ready": checker.ReadyHandler(),
		})
		defer shutdown(context.Background())
	}

	eng, err := engine.Open(ctx, cfg, met)
	if err != nil {
		slog.Error("failed to open engine", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Error("engine close failed", "error", err)
		}
	}()

	eng.RegisterHealth(checker)
	checker.Register("kafka", kafka.HealthCheck(cfg.Kafka.Brokers))

	invalidations := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
	defer invalidations.Close()

	opts := ingest.OptionsFromConfig(cfg.Indexer)
	opts.OnCommit = cache.PublishInvalidations(invalidations)
	// The pipeline outlives ctx so Close can drain and commit on shutdown.
	pipeline := ingest.Start(context.Background(), eng.Indexer(), opts, met)

	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentIngest,
		consumer.HandleMessage(pipeline),
		kafka.FromEarliest(),
		kafka.WithRetry(resilience.RetryConfig{
			MaxAttempts: 5,
			Retryable:   func(err error) bool { return !errors.Is(err, ingest.ErrClosed) },
		}),
	)
	indexConsumer := consumer.New(kafkaConsumer)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("committing buffered documents before shutdown")
	if err := pipeline.Close(); err != nil {
		slog.Error("final commit failed", "error", err)
	}
	slog.Info("indexer service stopped", "documents_committed", pipeline.Committed())
}

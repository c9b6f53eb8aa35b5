// Command ingestion accepts documents over HTTP at
// POST /api/v1/collections/{collection}/documents, validates them and
// publishes them to the ingest topic for the indexer.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/middleware"
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
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	var met *metrics.Metrics
	if cfg.Metrics.Enabled {
		met = metrics.New(prometheus.DefaultRegisterer)
		shutdown := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdown(context.Background())
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentIngest)

	h := handler.New(publisher.New(producer))
	checker := health.NewChecker(cfg.Server.HealthTimeout)
	checker.Register("kafka", kafka.HealthCheck(cfg.Kafka.Brokers))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/collections/{collection}/documents", h.Ingest)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(met)(chain)
	chain = middleware.Logging(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}

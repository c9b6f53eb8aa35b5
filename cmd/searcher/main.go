// Command searcher serves vector-tree queries over HTTP, caching results in
// Redis and dropping them when the indexer announces a commit.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/redis"
	"github.com/google/uuid"
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
	slog.Info("starting search service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var met *metrics.Metrics
	if cfg.Metrics.Enabled {
		met = metrics.New(prometheus.DefaultRegisterer)
		shutdown := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdown(context.Background())
	}

	eng, err := engine.Open(ctx, cfg, met)
	if err != nil {
		slog.Error("failed to open engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	checker := health.NewChecker(cfg.Server.HealthTimeout)
	eng.RegisterHealth(checker)

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis, met)
		checker.Register("redis", redisClient.HealthCheck())
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)

		// Every instance owns its cache view, so each one joins its own group.
		group := fmt.Sprintf("%s-searcher-%s", cfg.Kafka.ConsumerGroup, uuid.NewString()[:8])
		invalidations := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate,
			queryCache.HandleInvalidation(), kafka.WithGroupID(group))
		go func() {
			if err := invalidations.Start(ctx); err != nil {
				slog.Error("invalidation consumer error", "error", err)
			}
		}()
		slog.Info("listening for cache invalidations", "topic", cfg.Kafka.Topics.CacheInvalidate, "group", group)
	}

	exec := executor.New(eng.Parser(), eng.SearchSession())
	h := handler.New(exec, queryCache, met, cfg.Search)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(met)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Logging(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// Package engine opens everything an indexer or searcher process needs from
// one configuration: the column storage, the document store, the model and
// the indexing strategy.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/query"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/session"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/strategy"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/resilience"
)

type Engine struct {
	Provider *storage.Provider
	Docs     docstore.Store
	Model    model.Model
	Strategy strategy.Strategy
	// DB is set only when the document store lives in PostgreSQL.
	DB      *postgres.Client
	Metrics *metrics.Metrics

	defaultFields []string
	logger        *slog.Logger
}

// Open wires an Engine from cfg. Connecting to PostgreSQL is retried with
// backoff. met may be nil.
func Open(ctx context.Context, cfg *config.Config, met *metrics.Metrics) (*Engine, error) {
	strat, err := strategy.Parse(cfg.Indexer.Strategy)
	if err != nil {
		return nil, err
	}
	provider, err := storage.NewProvider(cfg.Indexer.DataDir)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		Provider: provider,
		Model: model.NewBagOfChars(model.Options{
			IdenticalAngle: cfg.Model.IdenticalAngle,
			FoldAngle:      cfg.Model.FoldAngle,
			Dimensions:     cfg.Model.Dimensions,
			StopWords:      cfg.Model.StopWords,
			MinTokenLen:    cfg.Model.MinTokenLength,
		}),
		Strategy:      strat,
		Metrics:       met,
		defaultFields: cfg.Search.DefaultFields,
		logger:        slog.Default().With("component", "engine"),
	}

	if cfg.Docstore.Driver == "postgres" {
		err = resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{MaxAttempts: 5}, func() error {
			var err error
			e.DB, err = postgres.New(cfg.Postgres)
			return err
		})
		if err != nil {
			provider.Close()
			return nil, fmt.Errorf("connecting document store: %w", err)
		}
	}
	e.Docs, err = docstore.Open(ctx, cfg.Docstore, e.DB)
	if err != nil {
		e.closeDB()
		provider.Close()
		return nil, fmt.Errorf("opening document store: %w", err)
	}

	e.logger.Info("engine opened",
		"data_dir", provider.Dir(),
		"strategy", strat.String(),
		"docstore", cfg.Docstore.Driver,
		"identical_angle", e.Model.IdenticalAngle(),
		"fold_angle", e.Model.FoldAngle(),
	)
	return e, nil
}

func (e *Engine) Indexer() *session.Indexer {
	return session.NewIndexer(e.Provider, e.Docs, e.Model, e.Strategy, e.Metrics)
}

func (e *Engine) SearchSession() *session.SearchSession {
	return session.NewSearchSession(e.Provider, e.Docs, e.Model, e.Strategy, e.Metrics)
}

// Parser returns a query parser matching bare words against the configured
// default fields.
func (e *Engine) Parser() *query.Parser {
	return query.NewParser(e.Model, e.defaultFields)
}

// RegisterHealth adds the engine's checks to checker.
func (e *Engine) RegisterHealth(checker *health.Checker) {
	checker.Register("index_storage", func(ctx context.Context) health.ComponentHealth {
		info, err := os.Stat(e.Provider.Dir())
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		if !info.IsDir() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "data dir is not a directory"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: e.Strategy.String()}
	})
	if e.DB != nil {
		checker.Register("postgres", e.DB.HealthCheck())
	}
}

func (e *Engine) Close() error {
	var errs []error
	if err := e.Docs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing document store: %w", err))
	}
	if err := e.closeDB(); err != nil {
		errs = append(errs, err)
	}
	if err := e.Provider.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing storage: %w", err))
	}
	return errors.Join(errs...)
}

func (e *Engine) closeDB() error {
	if e.DB == nil {
		return nil
	}
	if err := e.DB.Close(); err != nil {
		return fmt.Errorf("closing postgres: %w", err)
	}
	return nil
}

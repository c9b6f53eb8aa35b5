// Package publisher turns accepted ingest requests into events on the
// document-ingest topic.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/kafka"
)

type Publisher struct {
	producer kafka.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

func New(producer kafka.Publisher) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   slog.Default().With("component", "publisher"),
		now:      time.Now,
	}
}

// Ingest publishes one event per document. Events are keyed by collection
// so the documents of a collection keep their order on one partition.
func (p *Publisher) Ingest(ctx context.Context, collection string, docs []map[string]any) (*ingestion.IngestResponse, error) {
	at := p.now().UTC()
	events := make([]kafka.Event, 0, len(docs))
	for _, doc := range docs {
		events = append(events, kafka.Event{
			Key: collection,
			Value: ingestion.IngestEvent{
				Collection: collection,
				Document:   doc,
				IngestedAt: at,
			},
		})
	}
	if err := p.producer.PublishBatch(ctx, events); err != nil {
		return nil, fmt.Errorf("publishing %d documents to %s: %w", len(docs), collection, err)
	}
	p.logger.Debug("documents published", "collection", collection, "count", len(docs))
	return &ingestion.IngestResponse{
		Collection: collection,
		Accepted:   len(docs),
		Status:     "QUEUED",
	}, nil
}

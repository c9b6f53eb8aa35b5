// Package consumer reads ingest events from Kafka and feeds them into the
// ingest pipeline.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/kafka"
)

// Submitter accepts documents for indexing.
type Submitter interface {
	Submit(ctx context.Context, collection string, fields map[string]any) error
}

// IndexConsumer wraps a Kafka consumer to drive the ingest pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start consumes until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a kafka.MessageHandler that submits every event to
// sub. Undecodable or invalid events are logged and skipped so one bad
// message does not stall the partition.
func HandleMessage(sub Submitter) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if event.Collection == "" || len(event.Document) == 0 {
			logger.Warn("skipping ingest event without collection or fields",
				"key", string(key),
				"collection", event.Collection,
			)
			return nil
		}

		if err := sub.Submit(ctx, event.Collection, event.Document); err != nil {
			return fmt.Errorf("submitting document for %s: %w", event.Collection, err)
		}
		logger.Debug("ingest event queued",
			"collection", event.Collection,
			"fields", len(event.Document),
		)
		return nil
	}
}

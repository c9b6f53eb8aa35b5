package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/kafka"
)

// InvalidationEvent announces that a collection gained pages. A zero
// CollectionID drops every cached result.
type InvalidationEvent struct {
	CollectionID uint64 `json:"collection_id"`
}

// HandleInvalidation returns a handler for the cache-invalidation topic.
// Malformed events are logged and skipped.
func (c *QueryCache) HandleInvalidation() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[InvalidationEvent](value)
		if err != nil {
			c.logger.Error("failed to decode invalidation event", "error", err, "key", string(key))
			return nil
		}
		_, err = c.Invalidate(ctx, event.CollectionID)
		return err
	}
}

// PublishInvalidations returns a commit hook that announces changed
// collections on pub.
func PublishInvalidations(pub kafka.Publisher) func(ctx context.Context, collectionIDs []uint64) error {
	return func(ctx context.Context, collectionIDs []uint64) error {
		events := make([]kafka.Event, 0, len(collectionIDs))
		for _, id := range collectionIDs {
			events = append(events, kafka.Event{
				Key:   strconv.FormatUint(id, 10),
				Value: InvalidationEvent{CollectionID: id},
			})
		}
		if err := pub.PublishBatch(ctx, events); err != nil {
			return fmt.Errorf("publishing invalidations: %w", err)
		}
		return nil
	}
}

// Package kafka provides the producer and consumer used to move ingest and
// cache-invalidation events between the indexer, the searchers and vsctl.
// Values travel as JSON.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is a callback invoked for each Kafka message. Failed
// messages are retried with backoff, then dropped.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

type consumerOptions struct {
	reader kafka.ReaderConfig
	retry  resilience.RetryConfig
}

// ConsumerOption adjusts a Consumer.
type ConsumerOption func(*consumerOptions)

// WithGroupID overrides the configured consumer group. Searchers use a
// per-instance group so every instance sees every invalidation.
func WithGroupID(id string) ConsumerOption {
	return func(o *consumerOptions) { o.reader.GroupID = id }
}

// FromEarliest starts a new group at the oldest retained message instead of
// the newest.
func FromEarliest() ConsumerOption {
	return func(o *consumerOptions) { o.reader.StartOffset = kafka.FirstOffset }
}

// WithRetry sets the backoff applied to a failing handler.
func WithRetry(cfg resilience.RetryConfig) ConsumerOption {
	return func(o *consumerOptions) { o.retry = cfg }
}

type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
	retry   resilience.RetryConfig
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	o := consumerOptions{
		reader: kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1e3,
			MaxBytes:    10e6,
			StartOffset: kafka.LastOffset,
		},
		retry: resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Consumer{
		reader:  kafka.NewReader(o.reader),
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", o.reader.GroupID),
		handler: handler,
		retry:   o.retry,
	}
}

// Start fetches and handles messages until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return c.reader.Close()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("dropping message after retries",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	return resilience.Retry(ctx, "kafka-handler", c.retry, func() error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}

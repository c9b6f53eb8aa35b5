package kafka

import (
	"context"
	"errors"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/health"
	"github.com/segmentio/kafka-go"
)

// HealthCheck reports up when any of the brokers accepts a connection.
func HealthCheck(brokers []string) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		if len(brokers) == 0 {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no brokers configured"}
		}
		var errs []error
		for _, addr := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", addr)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			conn.Close()
			return health.ComponentHealth{Status: health.StatusUp, Message: addr}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: errors.Join(errs...).Error()}
	}
}

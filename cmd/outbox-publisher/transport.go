package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/replenish-backend/pkg/config"
	"github.com/angelmondragon/replenish-backend/pkg/kafka"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
	"github.com/angelmondragon/replenish-backend/pkg/outbox"
	"github.com/angelmondragon/replenish-backend/pkg/pubsub"
)

// newTransport picks the broker configured by REPLENISH_EVENTING_TRANSPORT
// and returns the topic events are published to.
func newTransport(ctx context.Context, cfg *config.Config, logg *logger.Logger) (outbox.Transport, string, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Eventing.Transport)) {
	case config.TransportKafka:
		producer, err := kafka.NewProducer(ctx, cfg.Kafka, logg)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap kafka: %w", err)
		}
		return producer, cfg.Kafka.Topic, nil
	case config.TransportPubSub, "":
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap pubsub: %w", err)
		}
		return client, cfg.PubSub.ReplenishmentTopic, nil
	default:
		return nil, "", fmt.Errorf("unsupported eventing transport %q", cfg.Eventing.Transport)
	}
}

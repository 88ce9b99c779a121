package cmd

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/convflow/convflow/pkg/eventbus"
	"github.com/convflow/convflow/pkg/eventbus/kafka"
)

// NewEventBus builds the lifecycle event bus. Kafka is used when brokers
// are configured; otherwise events stay in-process on a go channel pub/sub.
func NewEventBus(kafkaBrokers, consumerGroup string, logger *slog.Logger) (eventbus.EventBus, error) {
	if kafkaBrokers != "" {
		return kafka.NewEventBus(kafkaBrokers, consumerGroup, logger)
	}

	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))

	return eventbus.NewWatermillEventBus(pubsub, pubsub), nil
}

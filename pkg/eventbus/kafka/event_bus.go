// Package kafka provides the Kafka-backed event bus used when executions
// span multiple API instances.
package kafka

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	wkafka "github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/convflow/convflow/pkg/eventbus"
)

const defaultConsumerGroup = "cg-convflow-event-bus"

var ErrNoBrokers = errors.New("no Kafka brokers configured")

// NewEventBus builds a watermill event bus over Kafka. brokers is a
// comma-separated list; an empty consumerGroup falls back to the shared
// default group.
func NewEventBus(brokers, consumerGroup string, logger *slog.Logger) (eventbus.EventBus, error) {
	splitBrokers := strings.Split(brokers, ",")
	if len(splitBrokers) == 0 || (len(splitBrokers) == 1 && splitBrokers[0] == "") {
		return nil, ErrNoBrokers
	}

	if consumerGroup == "" {
		consumerGroup = defaultConsumerGroup
	}

	wmLogger := watermill.NewSlogLogger(logger)

	publisherConfig := wkafka.DefaultSaramaSyncPublisherConfig()
	publisherConfig.Producer.Return.Successes = true

	publisher, err := wkafka.NewPublisher(wkafka.PublisherConfig{
		Brokers:               splitBrokers,
		Marshaler:             wkafka.DefaultMarshaler{},
		OverwriteSaramaConfig: publisherConfig,
	}, wmLogger)
	if err != nil {
		return nil, err
	}

	subscriberConfig := wkafka.DefaultSaramaSubscriberConfig()
	subscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := wkafka.NewSubscriber(wkafka.SubscriberConfig{
		Brokers:               splitBrokers,
		Unmarshaler:           wkafka.DefaultMarshaler{},
		ConsumerGroup:         consumerGroup,
		OverwriteSaramaConfig: subscriberConfig,
	}, wmLogger)
	if err != nil {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Error("Failed to close Kafka publisher", "error", closeErr)
		}

		return nil, err
	}

	return eventbus.NewWatermillEventBus(publisher, subscriber), nil
}

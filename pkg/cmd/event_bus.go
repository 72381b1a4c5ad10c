package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/nodebase/pkg/channels/gochannel"
	"github.com/dukex/nodebase/pkg/channels/kafka"
	"github.com/dukex/nodebase/pkg/eventbus"
	"github.com/dukex/nodebase/pkg/status"
)

const (
	EventBusGoChannel = "gochannel"
	EventBusKafka     = "kafka"
)

// Transport is the pub/sub pair shared by the event bus and the status
// broker of one process.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	provider   string
	logger     *slog.Logger
}

// NewTransport connects to the configured provider. With gochannel every
// component must live in the same process.
func NewTransport(provider string, cfg kafka.Config, logger *slog.Logger) (*Transport, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case EventBusGoChannel, "":
		channel := gochannel.New(wmLogger)

		return &Transport{Publisher: channel, Subscriber: channel, provider: EventBusGoChannel, logger: logger}, nil
	case EventBusKafka:
		pub, sub, err := kafka.New(cfg, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return &Transport{Publisher: pub, Subscriber: sub, provider: EventBusKafka, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}

// EventBus wraps the transport for workflow lifecycle events, running up to
// concurrency handlers at once. Kafka opens one consumer-group member per
// slot; gochannel acknowledges on receipt and republishes failed messages.
func (t *Transport) EventBus(concurrency int) eventbus.EventBus {
	delivery := eventbus.AckAfterHandle
	if t.provider == EventBusGoChannel {
		delivery = eventbus.AckOnReceive
	}

	return eventbus.NewWatermillEventBus(t.Publisher, t.Subscriber, t.logger,
		eventbus.WithConcurrency(concurrency),
		eventbus.WithDelivery(delivery),
	)
}

// StatusBroker wraps the transport for node status messages.
func (t *Transport) StatusBroker() *status.Broker {
	return status.NewBroker(t.Publisher, t.Subscriber, t.logger)
}

func (t *Transport) Close() error {
	pubErr := t.Publisher.Close()

	if any(t.Subscriber) != any(t.Publisher) {
		err := t.Subscriber.Close()
		if err != nil {
			return err
		}
	}

	return pubErr
}

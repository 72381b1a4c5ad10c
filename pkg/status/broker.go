package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const channelMetadataKey = "channel"

// Publisher delivers a status message on a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, msg Message) error
}

// Broker carries status messages over a watermill pub/sub. Each channel maps
// to the topic "<channel>.status".
type Broker struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
}

func NewBroker(publisher message.Publisher, subscriber message.Subscriber, logger *slog.Logger) *Broker {
	return &Broker{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     logger.With("module", "status"),
	}
}

func topicName(channel string) string {
	return channel + "." + Topic
}

func (b *Broker) Publish(ctx context.Context, channel string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	wm := message.NewMessage(watermill.NewULID(), payload)
	wm.Metadata.Set(channelMetadataKey, channel)
	wm.SetContext(ctx)

	err = b.publisher.Publish(topicName(channel), wm)
	if err != nil {
		return fmt.Errorf("failed to publish status on %s: %w", channel, err)
	}

	return nil
}

// Subscribe streams decoded messages from channel until ctx is done.
func (b *Broker) Subscribe(ctx context.Context, channel string) (<-chan Message, error) {
	messages, err := b.subscriber.Subscribe(ctx, topicName(channel))
	if err != nil {
		return nil, err
	}

	out := make(chan Message)

	go func() {
		defer close(out)

		for wm := range messages {
			var msg Message

			err := json.Unmarshal(wm.Payload, &msg)
			if err != nil {
				b.logger.WarnContext(ctx, "Dropping malformed status message", "channel", channel, "error", err)
				wm.Ack()

				continue
			}

			select {
			case out <- msg:
				wm.Ack()
			case <-ctx.Done():
				wm.Nack()

				return
			}
		}
	}()

	return out, nil
}

func (b *Broker) Close() error {
	err := b.publisher.Close()
	if err != nil {
		return err
	}

	return b.subscriber.Close()
}

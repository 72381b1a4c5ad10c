package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/nodebase/pkg/events"
)

// Delivery selects when a message is acknowledged.
type Delivery int

const (
	// AckAfterHandle acknowledges once the handler returns and nacks on error.
	// Parallel work comes from opening one subscription per slot, which a
	// consumer-group broker balances across partitions.
	AckAfterHandle Delivery = iota
	// AckOnReceive acknowledges as soon as a slot is free and republishes the
	// message when the handler fails. Used with in-memory transports, whose
	// subscribers hold back the next message until the previous one is acked.
	AckOnReceive
)

const defaultRedeliveryDelay = time.Second

type Option func(*WatermillEventBus)

// WithConcurrency bounds how many handlers run at the same time.
func WithConcurrency(n int) Option {
	return func(eb *WatermillEventBus) {
		eb.concurrency = max(n, 1)
	}
}

func WithDelivery(delivery Delivery) Option {
	return func(eb *WatermillEventBus) {
		eb.delivery = delivery
	}
}

// WithRedeliveryDelay sets the pause before an AckOnReceive message whose
// handler failed is published again.
func WithRedeliveryDelay(delay time.Duration) Option {
	return func(eb *WatermillEventBus) {
		eb.redeliveryDelay = delay
	}
}

type WatermillEventBus struct {
	publisher       message.Publisher
	subscriber      message.Subscriber
	logger          *slog.Logger
	concurrency     int
	delivery        Delivery
	redeliveryDelay time.Duration
	mu              sync.RWMutex
	subscriptions   map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger, opts ...Option) *WatermillEventBus {
	eb := &WatermillEventBus{
		publisher:       pub,
		subscriber:      sub,
		logger:          logger.With("module", "event_bus"),
		concurrency:     1,
		delivery:        AckAfterHandle,
		redeliveryDelay: defaultRedeliveryDelay,
		subscriptions:   make(map[events.EventType]EventHandler),
	}

	for _, opt := range opts {
		opt(eb)
	}

	return eb
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))
	msg.SetContext(ctx)

	err = eb.publisher.Publish(events.Topic, msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.GetType(), err)
	}

	return nil
}

// Subscribe starts delivering messages to the registered handlers, running
// at most the configured number of handlers at once.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	if eb.delivery == AckOnReceive {
		messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
		if err != nil {
			return err
		}

		go eb.consumeDetached(ctx, messages)

		return nil
	}

	for range eb.concurrency {
		messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
		if err != nil {
			return err
		}

		go func() {
			for msg := range messages {
				if eb.dispatch(ctx, msg) != nil {
					msg.Nack()

					continue
				}

				msg.Ack()
			}
		}()
	}

	return nil
}

func (eb *WatermillEventBus) consumeDetached(ctx context.Context, messages <-chan *message.Message) {
	slots := make(chan struct{}, eb.concurrency)

	for msg := range messages {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			msg.Nack()

			return
		}

		msg.Ack()

		go func() {
			err := eb.dispatch(ctx, msg)
			<-slots

			if err != nil {
				eb.redeliver(ctx, msg)
			}
		}()
	}
}

func (eb *WatermillEventBus) redeliver(ctx context.Context, msg *message.Message) {
	select {
	case <-time.After(eb.redeliveryDelay):
	case <-ctx.Done():
		return
	}

	again := message.NewMessage("msg-"+eb.GenerateID(), msg.Payload)
	for key, value := range msg.Metadata {
		again.Metadata.Set(key, value)
	}

	err := eb.publisher.Publish(events.Topic, again)
	if err != nil {
		eb.logger.ErrorContext(ctx, "Failed to redeliver event", "message_id", msg.UUID, "error", err)
	}
}

func newEvent(eventType events.EventType) (any, bool) {
	switch eventType {
	case events.WorkflowTriggeredEvent:
		return &events.WorkflowTriggered{}, true
	case events.WorkflowExecutionCompletedEvent:
		return &events.WorkflowExecutionCompleted{}, true
	case events.WorkflowExecutionFailedEvent:
		return &events.WorkflowExecutionFailed{}, true
	default:
		return nil, false
	}
}

// dispatch decodes msg and runs its handler. Only a handler error is
// returned; unhandled or undecodable messages are dropped.
func (eb *WatermillEventBus) dispatch(ctx context.Context, msg *message.Message) error {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	eb.mu.RLock()
	handler, exists := eb.subscriptions[eventType]
	eb.mu.RUnlock()

	if !exists {
		return nil
	}

	event, known := newEvent(eventType)
	if !known {
		eb.logger.WarnContext(ctx, "Dropping event of unknown type", "event_type", eventType)

		return nil
	}

	err := json.Unmarshal(msg.Payload, event)
	if err != nil {
		eb.logger.WarnContext(ctx, "Dropping malformed event", "event_type", eventType, "error", err)

		return nil
	}

	err = handler(ctx, event)
	if err != nil {
		eb.logger.WarnContext(ctx, "Event handler failed, requesting redelivery",
			"event_type", eventType, "message_id", msg.UUID, "error", err)

		return err
	}

	return nil
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}

package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/nodebase/pkg/channels/gochannel"
	"github.com/dukex/nodebase/pkg/eventbus"
	"github.com/dukex/nodebase/pkg/events"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pubSub := gochannel.New(watermill.NopLogger{})
	bus := eventbus.NewWatermillEventBus(pubSub, pubSub, slog.Default())

	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_DeliversTypedEvents(t *testing.T) {
	bus := newBus(t)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	received := make(chan *events.WorkflowTriggered, 1)

	require.NoError(t, bus.Handle(events.WorkflowTriggeredEvent, func(_ context.Context, event any) error {
		received <- event.(*events.WorkflowTriggered)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	sent := events.NewWorkflowTriggered("wf-1", models.NodeTypeManualTrigger, models.Context{"manual": map[string]any{"a": "b"}})
	require.NoError(t, bus.Publish(ctx, "wf-1", sent))

	select {
	case event := <-received:
		assert.Equal(t, sent.ExecutionID, event.ExecutionID)
		assert.Equal(t, "wf-1", event.WorkflowID)
		assert.Equal(t, models.NodeTypeManualTrigger, event.TriggerType)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_HandlerErrorRedelivers(t *testing.T) {
	bus := newBus(t)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	var attempts atomic.Int32

	require.NoError(t, bus.Handle(events.WorkflowTriggeredEvent, func(context.Context, any) error {
		if attempts.Add(1) == 1 {
			return errors.New("database unavailable")
		}

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "wf-1", events.NewWorkflowTriggered("wf-1", models.NodeTypeManualTrigger, nil)))

	assert.Eventually(t, func() bool {
		return attempts.Load() == 2
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatermillEventBus_IgnoresUnhandledTypes(t *testing.T) {
	bus := newBus(t)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	delivered := make(chan struct{}, 1)

	require.NoError(t, bus.Handle(events.WorkflowTriggeredEvent, func(context.Context, any) error {
		delivered <- struct{}{}

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	completed := events.NewExecutionFinished(&models.Execution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusSuccess,
	}, "worker-1")
	require.NoError(t, bus.Publish(ctx, "wf-1", completed))
	require.NoError(t, bus.Publish(ctx, "wf-1", events.NewWorkflowTriggered("wf-1", models.NodeTypeManualTrigger, nil)))

	select {
	case <-delivered:
	case <-ctx.Done():
		t.Fatal("handled event was not delivered after an unhandled one")
	}
}

func TestWatermillEventBus_AckOnReceiveRepublishesFailures(t *testing.T) {
	pubSub := gochannel.New(watermill.NopLogger{})
	bus := eventbus.NewWatermillEventBus(pubSub, pubSub, slog.Default(),
		eventbus.WithConcurrency(2),
		eventbus.WithDelivery(eventbus.AckOnReceive),
		eventbus.WithRedeliveryDelay(10*time.Millisecond),
	)
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	var attempts atomic.Int32

	executionIDs := make(chan string, 2)

	require.NoError(t, bus.Handle(events.WorkflowTriggeredEvent, func(_ context.Context, event any) error {
		executionIDs <- event.(*events.WorkflowTriggered).ExecutionID

		if attempts.Add(1) == 1 {
			return errors.New("database unavailable")
		}

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	sent := events.NewWorkflowTriggered("wf-1", models.NodeTypeManualTrigger, nil)
	require.NoError(t, bus.Publish(ctx, "wf-1", sent))

	assert.Eventually(t, func() bool {
		return attempts.Load() == 2
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, sent.ExecutionID, <-executionIDs)
	assert.Equal(t, sent.ExecutionID, <-executionIDs)
}

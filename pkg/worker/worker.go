// Package worker consumes workflow.triggered events and drives each execution
// to a terminal state.
package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukex/nodebase/pkg/eventbus"
	"github.com/dukex/nodebase/pkg/events"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/otelhelper"
	"github.com/dukex/nodebase/pkg/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrInvalidEvent = errors.New("invalid event payload")

// Runner executes one workflow request to completion.
type Runner interface {
	Execute(ctx context.Context, req workflow.Request) (*models.Execution, error)
}

type Manager struct {
	id       string
	logger   *slog.Logger
	runner   Runner
	eventBus eventbus.EventBus
	tracer   trace.Tracer
}

// NewManager builds a worker. How many executions run at once is decided by
// the event bus it subscribes through.
func NewManager(id string, runner Runner, eventBus eventbus.EventBus, tracer trace.Tracer, logger *slog.Logger) *Manager {
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	return &Manager{
		id:       id,
		logger:   logger.With("module", "worker", "worker_id", id),
		runner:   runner,
		eventBus: eventBus,
		tracer:   tracer,
	}
}

// Start registers the handler and subscribes. Delivery continues until ctx
// is done.
func (w *Manager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	err := w.eventBus.Handle(events.WorkflowTriggeredEvent, w.HandleWorkflowTriggered)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	return nil
}

// HandleWorkflowTriggered runs the triggered execution and announces its
// outcome. An error means the execution could not be finished or announced
// and the event must be redelivered; failed executions are not errors.
func (w *Manager) HandleWorkflowTriggered(ctx context.Context, event any) error {
	triggered, ok := event.(*events.WorkflowTriggered)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for WorkflowTriggered")

		return nil
	}

	if triggered.ExecutionID == "" || triggered.WorkflowID == "" {
		w.logger.ErrorContext(ctx, "Dropping triggered event without ids", "event_id", triggered.ID, "error", ErrInvalidEvent)

		return nil
	}

	logger := w.logger.With(
		"workflow_id", triggered.WorkflowID,
		"execution_id", triggered.ExecutionID,
		"event_id", triggered.ID,
	)
	logger.InfoContext(ctx, "Processing workflow triggered event")

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.workflow_triggered",
		attribute.String(otelhelper.EventIDKey, triggered.ID),
		attribute.String(otelhelper.WorkerIDKey, w.id),
		attribute.String(otelhelper.WorkflowIDKey, triggered.WorkflowID),
	)
	defer span.End()

	execution, err := w.runner.Execute(ctx, workflow.Request{
		ExecutionID: triggered.ExecutionID,
		WorkflowID:  triggered.WorkflowID,
		Input:       triggered.TriggerData,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to execute workflow", "error", err)
		otelhelper.SetError(span, err)

		return err
	}

	err = w.eventBus.Publish(ctx, execution.WorkflowID, events.NewExecutionFinished(execution, w.id))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish execution outcome", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Workflow execution finished", "status", execution.Status)

	return nil
}

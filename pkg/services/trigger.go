package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/nodebase/pkg/eventbus"
	"github.com/dukex/nodebase/pkg/events"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/nodes/trigger"
	"github.com/dukex/nodebase/pkg/persistence"
)

// Trigger turns ingress payloads into workflow.triggered events.
type Trigger struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

func NewTrigger(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Trigger {
	return &Trigger{
		persistence: persistence,
		publisher:   publisher,
		logger:      logger.With("module", "trigger_service"),
	}
}

// Manual queues a manual run; a non-empty payload is seeded under "manual".
func (t *Trigger) Manual(ctx context.Context, workflowID string, payload map[string]any) (string, error) {
	return t.fire(ctx, workflowID, models.NodeTypeManualTrigger, trigger.ManualContext(payload))
}

// GoogleForm queues a run for a Google Form submission.
func (t *Trigger) GoogleForm(ctx context.Context, workflowID string, payload map[string]any) (string, error) {
	return t.fire(ctx, workflowID, models.NodeTypeGoogleFormTrigger, trigger.GoogleFormContext(payload))
}

// Stripe queues a run for a Stripe event.
func (t *Trigger) Stripe(ctx context.Context, workflowID string, payload map[string]any) (string, error) {
	return t.fire(ctx, workflowID, models.NodeTypeStripeTrigger, trigger.StripeContext(payload))
}

// fire publishes the event and returns the execution id the worker will use.
func (t *Trigger) fire(ctx context.Context, workflowID string, nodeType models.NodeType, seed models.Context) (string, error) {
	if workflowID == "" {
		return "", NewValidationError("Trigger", "WORKFLOW_ID_REQUIRED", "Missing required query parameter: workflowId", ErrWorkflowIDRequired)
	}

	_, err := t.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return "", err
	}

	event := events.NewWorkflowTriggered(workflowID, nodeType, seed)

	err = t.publisher.Publish(ctx, workflowID, event)
	if err != nil {
		return "", fmt.Errorf("failed to queue workflow %s: %w", workflowID, err)
	}

	t.logger.InfoContext(ctx, "Workflow triggered",
		"workflow_id", workflowID, "execution_id", event.ExecutionID, "trigger_type", nodeType)

	return event.ExecutionID, nil
}

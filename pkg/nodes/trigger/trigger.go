// Package trigger provides the executors for workflow entry nodes. Trigger
// executors add nothing to the context; the trigger payload is seeded by the
// ingress before traversal starts.
package trigger

import (
	"context"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/protocol"
	"github.com/dukex/nodebase/pkg/step"
)

// Executor passes the context through a memoized step so that replays see
// exactly the context the first run saw.
type Executor struct {
	nodeType    models.NodeType
	name        string
	description string
	stepName    string
}

func (e *Executor) Type() models.NodeType {
	return e.nodeType
}

func (e *Executor) Name() string {
	return e.name
}

func (e *Executor) Description() string {
	return e.description
}

func (e *Executor) Schema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": true,
	}
}

func (e *Executor) Execute(ctx context.Context, in protocol.Input) (models.Context, error) {
	in.Loading(ctx)

	result, err := step.Run(ctx, in.Steps, e.stepName, func(context.Context) (models.Context, error) {
		return in.Context.Clone(), nil
	})
	if err != nil {
		return in.Fail(ctx, err)
	}

	if result == nil {
		result = models.Context{}
	}

	return in.Succeed(ctx, result)
}

func NewManualTrigger() *Executor {
	return &Executor{
		nodeType:    models.NodeTypeManualTrigger,
		name:        "Manual Trigger",
		description: "Starts the workflow when a user runs it manually",
		stepName:    "manual-trigger",
	}
}

// NewInitial handles the placeholder node of a workflow with no real trigger
// yet; it behaves like the manual trigger.
func NewInitial() *Executor {
	return &Executor{
		nodeType:    models.NodeTypeInitial,
		name:        "Initial",
		description: "Placeholder trigger that behaves like a manual trigger",
		stepName:    "manual-trigger",
	}
}

func NewGoogleFormTrigger() *Executor {
	return &Executor{
		nodeType:    models.NodeTypeGoogleFormTrigger,
		name:        "Google Form",
		description: "Starts the workflow when a Google Form is submitted",
		stepName:    "google-form-trigger",
	}
}

func NewStripeTrigger() *Executor {
	return &Executor{
		nodeType:    models.NodeTypeStripeTrigger,
		name:        "Stripe Event",
		description: "Starts the workflow when a Stripe event is received",
		stepName:    "stripe-trigger",
	}
}

package trigger

import (
	"context"
	"testing"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/protocol"
	"github.com/dukex/nodebase/pkg/status"
	"github.com/dukex/nodebase/pkg/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_PassesContextThrough(t *testing.T) {
	for _, executor := range []*Executor{NewManualTrigger(), NewInitial(), NewGoogleFormTrigger(), NewStripeTrigger()} {
		t.Run(string(executor.Type()), func(t *testing.T) {
			var published []status.Status

			input := protocol.Input{
				NodeID:  "trigger",
				Context: GoogleFormContext(map[string]any{"formId": "f-1"}),
				Steps:   step.New(step.NewMemoryStore(), "exec"),
				Publish: func(_ context.Context, s status.Status) { published = append(published, s) },
			}

			result, err := executor.Execute(t.Context(), input)
			require.NoError(t, err)

			form, ok := result[GoogleFormKey].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "f-1", form["formId"])
			assert.Equal(t, []status.Status{status.Loading, status.Success}, published)
		})
	}
}

func TestExecutor_EmptyContext(t *testing.T) {
	result, err := NewManualTrigger().Execute(t.Context(), protocol.Input{
		Steps: step.New(step.NewMemoryStore(), "exec"),
	})

	require.NoError(t, err)
	assert.Equal(t, models.Context{}, result)
}

func TestInitialSharesManualTriggerStep(t *testing.T) {
	assert.Equal(t, NewManualTrigger().stepName, NewInitial().stepName)
	assert.Equal(t, models.NodeTypeInitial, NewInitial().Type())
}

func TestPayloadContexts(t *testing.T) {
	assert.Equal(t, models.Context{}, ManualContext(nil))
	assert.Equal(t, models.Context{"manual": map[string]any{"a": 1}}, ManualContext(map[string]any{"a": 1}))

	stripe := StripeContext(map[string]any{"id": "evt_1", "type": "payment_intent.succeeded", "created": 1700000000, "livemode": false})
	event := stripe[StripeKey].(map[string]any)
	assert.Equal(t, "evt_1", event["eventId"])
	assert.Equal(t, "payment_intent.succeeded", event["eventType"])
}

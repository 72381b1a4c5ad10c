package trigger

import (
	"github.com/dukex/nodebase/pkg/models"
)

// Context keys seeded by each trigger kind.
const (
	ManualKey     = "manual"
	GoogleFormKey = "googleForm"
	StripeKey     = "stripe"
)

// ManualContext seeds a manual run. An empty payload seeds an empty context.
func ManualContext(payload map[string]any) models.Context {
	if len(payload) == 0 {
		return models.Context{}
	}

	return models.Context{ManualKey: payload}
}

// GoogleFormContext normalizes an Apps Script form submission.
func GoogleFormContext(payload map[string]any) models.Context {
	return models.Context{
		GoogleFormKey: map[string]any{
			"formId":          payload["formId"],
			"formTitle":       payload["formTitle"],
			"responseId":      payload["responseId"],
			"timestamp":       payload["timestamp"],
			"respondentEmail": payload["respondentEmail"],
			"responses":       payload["responses"],
			"raw":             payload,
		},
	}
}

// StripeContext normalizes a Stripe webhook event.
func StripeContext(payload map[string]any) models.Context {
	return models.Context{
		StripeKey: map[string]any{
			"eventId":   payload["id"],
			"eventType": payload["type"],
			"timestamp": payload["created"],
			"livemode":  payload["livemode"],
			"raw":       payload,
		},
	}
}

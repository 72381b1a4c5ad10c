package llm

import (
	"github.com/dukex/nodebase/pkg/models"
)

func (e *Executor) Type() models.NodeType {
	return e.provider.NodeType()
}

func (e *Executor) Name() string {
	return e.provider.Label()
}

func (e *Executor) Description() string {
	return "Generates text with " + e.provider.Label() + " and stores it in the workflow context"
}

func (e *Executor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"variableName": map[string]any{
				"type":        "string",
				"description": "Context key the generated text is stored under",
				"pattern":     `^[A-Za-z_$][A-Za-z0-9_$]*$`,
			},
			"credentialId": map[string]any{
				"type":        "string",
				"description": "ID of a " + string(e.provider.CredentialType()) + " credential",
			},
			"systemPrompt": map[string]any{
				"type":        "string",
				"description": "System prompt. Defaults to \"" + DefaultSystemPrompt + "\"",
			},
			"userPrompt": map[string]any{
				"type":        "string",
				"description": "User prompt. Supports templating with {{variable.field}}",
			},
			"model": map[string]any{
				"type":    "string",
				"default": e.provider.DefaultModel(),
			},
		},
		"required": []string{"variableName", "credentialId", "userPrompt"},
	}
}

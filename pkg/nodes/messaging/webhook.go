// Package messaging provides the Discord, Slack and WhatsApp node executors.
package messaging

import (
	"context"
	"net/http"

	"github.com/dukex/nodebase/pkg/execerr"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/nodes"
	"github.com/dukex/nodebase/pkg/protocol"
	"github.com/dukex/nodebase/pkg/step"
	"github.com/dukex/nodebase/pkg/template"
)

// DiscordMaxContent is Discord's message length limit, in characters.
const DiscordMaxContent = 2000

// WebhookConfig is the node data of DISCORD and SLACK nodes.
type WebhookConfig struct {
	VariableName string `json:"variableName" label:"Variable name" validate:"required,varname"`
	WebhookURL   string `json:"webhookUrl"   label:"Webhook URL"   validate:"required"`
	Content      string `json:"content"      label:"Content"       validate:"required"`
	Username     string `json:"username"`
}

// MessageResult is the value bound under a webhook node's variable name.
type MessageResult struct {
	MessageContent string `json:"messageContent"`
}

// WebhookExecutor posts rendered content to an incoming webhook.
type WebhookExecutor struct {
	nodeType models.NodeType
	label    string
	stepName string
	client   *http.Client
	payload  func(content, username string) any
	limit    int
}

func NewDiscord(client *http.Client) *WebhookExecutor {
	return &WebhookExecutor{
		nodeType: models.NodeTypeDiscord,
		label:    "Discord",
		stepName: "discord-webhook",
		client:   defaultClient(client),
		limit:    DiscordMaxContent,
		payload: func(content, username string) any {
			body := map[string]any{"content": content}
			if username != "" {
				body["username"] = username
			}

			return body
		},
	}
}

func NewSlack(client *http.Client) *WebhookExecutor {
	return &WebhookExecutor{
		nodeType: models.NodeTypeSlack,
		label:    "Slack",
		stepName: "slack-webhook",
		client:   defaultClient(client),
		payload: func(content, _ string) any {
			return map[string]any{"text": content}
		},
	}
}

func defaultClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}

	return nodes.NewHTTPClient(nodes.DefaultTimeout)
}

func (e *WebhookExecutor) op() string {
	return e.label + " node"
}

func (e *WebhookExecutor) Execute(ctx context.Context, in protocol.Input) (models.Context, error) {
	in.Loading(ctx)

	var config WebhookConfig

	err := protocol.DecodeAndValidate(e.op(), in.Data, &config)
	if err != nil {
		return in.Fail(ctx, err)
	}

	content, err := template.RenderText(config.Content, in.Context)
	if err != nil {
		return in.Fail(ctx, execerr.Validation(e.op(), "Invalid content template: %v", err))
	}

	username := ""
	if config.Username != "" {
		username, err = template.RenderText(config.Username, in.Context)
		if err != nil {
			return in.Fail(ctx, execerr.Validation(e.op(), "Invalid username template: %v", err))
		}
	}

	if e.limit > 0 {
		content = nodes.Truncate(content, e.limit)
	}

	result, err := step.Run(ctx, in.Steps, e.stepName, func(ctx context.Context) (MessageResult, error) {
		err := nodes.DoJSON(ctx, e.client, e.op(), nodes.Request{
			Method: http.MethodPost,
			URL:    config.WebhookURL,
			Body:   e.payload(content, username),
		}, nil)

		return MessageResult{MessageContent: content}, err
	})
	if err != nil {
		return in.Fail(ctx, err)
	}

	return in.Succeed(ctx, in.Context.With(config.VariableName, result))
}

func (e *WebhookExecutor) Type() models.NodeType {
	return e.nodeType
}

func (e *WebhookExecutor) Name() string {
	return e.label
}

func (e *WebhookExecutor) Description() string {
	return "Posts a message to a " + e.label + " incoming webhook"
}

func (e *WebhookExecutor) Schema() map[string]any {
	properties := map[string]any{
		"variableName": map[string]any{
			"type":    "string",
			"pattern": `^[A-Za-z_$][A-Za-z0-9_$]*$`,
		},
		"webhookUrl": map[string]any{
			"type":   "string",
			"format": "uri",
		},
		"content": map[string]any{
			"type":        "string",
			"description": "Message body. Supports templating with {{variable.field}}",
		},
	}

	if e.nodeType == models.NodeTypeDiscord {
		properties["username"] = map[string]any{
			"type":        "string",
			"description": "Overrides the webhook's default username",
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   []string{"variableName", "webhookUrl", "content"},
	}
}

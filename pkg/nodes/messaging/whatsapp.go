package messaging

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/dukex/nodebase/pkg/credentials"
	"github.com/dukex/nodebase/pkg/execerr"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/nodes"
	"github.com/dukex/nodebase/pkg/protocol"
	"github.com/dukex/nodebase/pkg/step"
	"github.com/dukex/nodebase/pkg/template"
)

const (
	DefaultGraphBaseURL = "https://graph.facebook.com"
	graphAPIVersion     = "v18.0"
	whatsAppOp          = "WhatsApp node"
)

// CredentialResolver loads and decrypts a node's credential inside a step.
type CredentialResolver interface {
	Resolve(ctx context.Context, steps step.Steps, op, id, userID string, expected models.CredentialType) (credentials.Secret, error)
}

type WhatsAppConfig struct {
	VariableName   string `json:"variableName"   label:"Variable name"   validate:"required,varname"`
	CredentialID   string `json:"credentialId"   label:"Credential ID"   validate:"required"`
	RecipientPhone string `json:"recipientPhone" label:"Recipient phone" validate:"required"`
	Content        string `json:"content"        label:"Content"         validate:"required"`
}

// WhatsAppResult is the value bound under the node's variable name.
type WhatsAppResult struct {
	MessageID      *string `json:"messageId"`
	RecipientPhone string  `json:"recipientPhone"`
	MessageContent string  `json:"messageContent"`
	Status         string  `json:"status"`
}

type whatsAppText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type whatsAppRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// WhatsApp sends text messages through the Meta Graph API. Its credential
// holds "phoneNumberId:accessToken".
type WhatsApp struct {
	baseURL  string
	resolver CredentialResolver
	client   *http.Client
}

func NewWhatsApp(baseURL string, resolver CredentialResolver, client *http.Client) *WhatsApp {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}

	return &WhatsApp{
		baseURL:  strings.TrimRight(baseURL, "/"),
		resolver: resolver,
		client:   defaultClient(client),
	}
}

func (e *WhatsApp) Execute(ctx context.Context, in protocol.Input) (models.Context, error) {
	in.Loading(ctx)

	var config WhatsAppConfig

	err := protocol.DecodeAndValidate(whatsAppOp, in.Data, &config)
	if err != nil {
		return in.Fail(ctx, err)
	}

	secret, err := e.resolver.Resolve(ctx, in.Steps, whatsAppOp, config.CredentialID, in.UserID, models.CredentialTypeWhatsApp)
	if err != nil {
		return in.Fail(ctx, err)
	}

	phoneNumberID, accessToken, err := secret.Pair()
	if err != nil {
		return in.Fail(ctx, execerr.Dependency(whatsAppOp,
			"Invalid credential format. Please recreate your WhatsApp credential", err))
	}

	content, err := template.RenderText(config.Content, in.Context)
	if err != nil {
		return in.Fail(ctx, execerr.Validation(whatsAppOp, "Invalid content template: %v", err))
	}

	recipient, err := template.RenderText(config.RecipientPhone, in.Context)
	if err != nil {
		return in.Fail(ctx, execerr.Validation(whatsAppOp, "Invalid recipient template: %v", err))
	}

	result, err := step.Run(ctx, in.Steps, "whatsapp-send-message", func(ctx context.Context) (WhatsAppResult, error) {
		var resp whatsAppResponse

		err := nodes.DoJSON(ctx, e.client, whatsAppOp, nodes.Request{
			Method:  http.MethodPost,
			URL:     e.baseURL + "/" + graphAPIVersion + "/" + url.PathEscape(phoneNumberID) + "/messages",
			Headers: map[string]string{"Authorization": "Bearer " + accessToken},
			Body: whatsAppRequest{
				MessagingProduct: "whatsapp",
				RecipientType:    "individual",
				To:               recipient,
				Type:             "text",
				Text:             whatsAppText{Body: content},
			},
		}, &resp)
		if err != nil {
			return WhatsAppResult{}, err
		}

		result := WhatsAppResult{RecipientPhone: recipient, MessageContent: content, Status: "sent"}
		if len(resp.Messages) > 0 && resp.Messages[0].ID != "" {
			result.MessageID = &resp.Messages[0].ID
		}

		return result, nil
	})
	if err != nil {
		return in.Fail(ctx, err)
	}

	in.Log().InfoContext(ctx, "WhatsApp message sent", "node_id", in.NodeID, "message_id", result.MessageID)

	return in.Succeed(ctx, in.Context.With(config.VariableName, result))
}

func (e *WhatsApp) Type() models.NodeType {
	return models.NodeTypeWhatsApp
}

func (e *WhatsApp) Name() string {
	return "WhatsApp"
}

func (e *WhatsApp) Description() string {
	return "Sends a WhatsApp text message through the Meta Graph API"
}

func (e *WhatsApp) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"variableName": map[string]any{
				"type":    "string",
				"pattern": `^[A-Za-z_$][A-Za-z0-9_$]*$`,
			},
			"credentialId": map[string]any{
				"type":        "string",
				"description": "ID of a WHATSAPP credential holding phoneNumberId:accessToken",
			},
			"recipientPhone": map[string]any{
				"type":        "string",
				"description": "Recipient in international format. Supports templating",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Message body. Supports templating with {{variable.field}}",
			},
		},
		"required": []string{"variableName", "credentialId", "recipientPhone", "content"},
	}
}

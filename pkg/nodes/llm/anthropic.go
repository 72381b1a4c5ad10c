package llm

import (
	"context"
	"net/http"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/nodes"
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 4096
)

type Anthropic struct {
	baseURL string
}

func NewAnthropic(baseURL string) *Anthropic {
	return &Anthropic{baseURL: trimBaseURL(baseURL, DefaultAnthropicBaseURL)}
}

func (p *Anthropic) Label() string                         { return "Anthropic" }
func (p *Anthropic) NodeType() models.NodeType             { return models.NodeTypeAnthropic }
func (p *Anthropic) CredentialType() models.CredentialType { return models.CredentialTypeAnthropic }
func (p *Anthropic) DefaultModel() string                  { return "claude-3-5-sonnet-20241022" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *Anthropic) Generate(ctx context.Context, client *http.Client, apiKey string, prompt Prompt) (string, error) {
	var resp anthropicResponse

	err := nodes.DoJSON(ctx, client, "Anthropic node", nodes.Request{
		Method: http.MethodPost,
		URL:    p.baseURL + "/v1/messages",
		Headers: map[string]string{
			"x-api-key":         apiKey,
			"anthropic-version": anthropicVersion,
		},
		Body: anthropicRequest{
			Model:     prompt.Model,
			System:    prompt.System,
			MaxTokens: anthropicMaxTokens,
			Messages:  []anthropicMessage{{Role: "user", Content: prompt.User}},
		},
	}, &resp)
	if err != nil {
		return "", err
	}

	// Only the first block counts; a non-text first block yields "".
	if len(resp.Content) == 0 || resp.Content[0].Type != "text" {
		return "", nil
	}

	return resp.Content[0].Text, nil
}

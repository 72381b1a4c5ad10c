package llm

import (
	"context"
	"net/http"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/nodes"
)

const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

type OpenAI struct {
	baseURL string
}

func NewOpenAI(baseURL string) *OpenAI {
	return &OpenAI{baseURL: trimBaseURL(baseURL, DefaultOpenAIBaseURL)}
}

func (p *OpenAI) Label() string                         { return "OpenAI" }
func (p *OpenAI) NodeType() models.NodeType             { return models.NodeTypeOpenAI }
func (p *OpenAI) CredentialType() models.CredentialType { return models.CredentialTypeOpenAI }
func (p *OpenAI) DefaultModel() string                  { return "gpt-4" }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (p *OpenAI) Generate(ctx context.Context, client *http.Client, apiKey string, prompt Prompt) (string, error) {
	var resp openAIResponse

	err := nodes.DoJSON(ctx, client, "OpenAI node", nodes.Request{
		Method:  http.MethodPost,
		URL:     p.baseURL + "/chat/completions",
		Headers: map[string]string{"Authorization": "Bearer " + apiKey},
		Body: openAIRequest{
			Model: prompt.Model,
			Messages: []openAIMessage{
				{Role: "system", Content: prompt.System},
				{Role: "user", Content: prompt.User},
			},
		},
	}, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}

	return resp.Choices[0].Message.Content, nil
}

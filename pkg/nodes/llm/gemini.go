package llm

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/nodes"
)

const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

type Gemini struct {
	baseURL string
}

func NewGemini(baseURL string) *Gemini {
	return &Gemini{baseURL: trimBaseURL(baseURL, DefaultGeminiBaseURL)}
}

func (p *Gemini) Label() string                         { return "Gemini" }
func (p *Gemini) NodeType() models.NodeType             { return models.NodeTypeGemini }
func (p *Gemini) CredentialType() models.CredentialType { return models.CredentialTypeGemini }
func (p *Gemini) DefaultModel() string                  { return "gemini-flash-latest" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (p *Gemini) Generate(ctx context.Context, client *http.Client, apiKey string, prompt Prompt) (string, error) {
	request := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt.User}}}},
	}

	if prompt.System != "" {
		request.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: prompt.System}}}
	}

	var resp geminiResponse

	err := nodes.DoJSON(ctx, client, "Gemini node", nodes.Request{
		Method:  http.MethodPost,
		URL:     p.baseURL + "/v1beta/models/" + url.PathEscape(prompt.Model) + ":generateContent",
		Headers: map[string]string{"x-goog-api-key": apiKey},
		Body:    request,
	}, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// Package llm provides the text generation node executors for OpenAI,
// Anthropic and Gemini.
package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/dukex/nodebase/pkg/models"
)

// Prompt is one text generation request.
type Prompt struct {
	Model  string
	System string
	User   string
}

// Provider calls one vendor's text generation API.
type Provider interface {
	// Label names the provider in errors, for example "OpenAI".
	Label() string
	NodeType() models.NodeType
	CredentialType() models.CredentialType
	DefaultModel() string
	Generate(ctx context.Context, client *http.Client, apiKey string, prompt Prompt) (string, error)
}

func trimBaseURL(baseURL, fallback string) string {
	if baseURL == "" {
		return fallback
	}

	return strings.TrimRight(baseURL, "/")
}

func stepName(p Provider) string {
	return strings.ToLower(p.Label()) + "-generate-text"
}

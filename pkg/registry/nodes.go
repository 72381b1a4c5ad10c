package registry

import (
	"net/http"

	"github.com/dukex/nodebase/pkg/credentials"
	"github.com/dukex/nodebase/pkg/nodes/httprequest"
	"github.com/dukex/nodebase/pkg/nodes/llm"
	"github.com/dukex/nodebase/pkg/nodes/messaging"
	"github.com/dukex/nodebase/pkg/nodes/trigger"
)

// Dependencies are the collaborators built-in executors need. Empty base
// URLs use the public endpoints.
type Dependencies struct {
	Credentials      *credentials.Resolver
	HTTPClient       *http.Client
	OpenAIBaseURL    string
	AnthropicBaseURL string
	GeminiBaseURL    string
	WhatsAppBaseURL  string
}

// RegisterDefaultNodes registers all built-in node executors with the registry.
func (r *Registry) RegisterDefaultNodes(deps Dependencies) {
	// Triggers
	r.RegisterNode(trigger.NewInitial())
	r.RegisterNode(trigger.NewManualTrigger())
	r.RegisterNode(trigger.NewGoogleFormTrigger())
	r.RegisterNode(trigger.NewStripeTrigger())

	var transport http.RoundTripper
	if deps.HTTPClient != nil {
		transport = deps.HTTPClient.Transport
	}

	r.RegisterNode(httprequest.New(transport))

	// LLM providers
	r.RegisterNode(llm.New(llm.NewOpenAI(deps.OpenAIBaseURL), deps.Credentials, deps.HTTPClient))
	r.RegisterNode(llm.New(llm.NewAnthropic(deps.AnthropicBaseURL), deps.Credentials, deps.HTTPClient))
	r.RegisterNode(llm.New(llm.NewGemini(deps.GeminiBaseURL), deps.Credentials, deps.HTTPClient))

	// Messaging
	r.RegisterNode(messaging.NewDiscord(deps.HTTPClient))
	r.RegisterNode(messaging.NewSlack(deps.HTTPClient))
	r.RegisterNode(messaging.NewWhatsApp(deps.WhatsAppBaseURL, deps.Credentials, deps.HTTPClient))
}

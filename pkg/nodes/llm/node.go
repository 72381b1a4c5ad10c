package llm

import (
	"context"
	"net/http"

	"github.com/dukex/nodebase/pkg/credentials"
	"github.com/dukex/nodebase/pkg/execerr"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/nodes"
	"github.com/dukex/nodebase/pkg/protocol"
	"github.com/dukex/nodebase/pkg/step"
	"github.com/dukex/nodebase/pkg/template"
)

const DefaultSystemPrompt = "You are a helpful assistant."

// CredentialResolver loads and decrypts a node's credential inside a step.
type CredentialResolver interface {
	Resolve(ctx context.Context, steps step.Steps, op, id, userID string, expected models.CredentialType) (credentials.Secret, error)
}

// Config is the node data shared by every LLM node. Fields are validated in
// declaration order.
type Config struct {
	VariableName string `json:"variableName" label:"Variable name" validate:"required,varname"`
	CredentialID string `json:"credentialId" label:"Credential ID" validate:"required"`
	UserPrompt   string `json:"userPrompt"   label:"User prompt"   validate:"required"`
	SystemPrompt string `json:"systemPrompt"`
	Model        string `json:"model"`
}

// Result is the value bound under the node's variable name.
type Result struct {
	Text string `json:"text"`
}

type Executor struct {
	provider Provider
	resolver CredentialResolver
	client   *http.Client
}

func New(provider Provider, resolver CredentialResolver, client *http.Client) *Executor {
	if client == nil {
		client = nodes.NewHTTPClient(nodes.DefaultTimeout)
	}

	return &Executor{provider: provider, resolver: resolver, client: client}
}

func (e *Executor) op() string {
	return e.provider.Label() + " node"
}

func (e *Executor) Execute(ctx context.Context, in protocol.Input) (models.Context, error) {
	in.Loading(ctx)

	var config Config

	err := protocol.DecodeAndValidate(e.op(), in.Data, &config)
	if err != nil {
		return in.Fail(ctx, err)
	}

	prompt := Prompt{Model: config.Model, System: DefaultSystemPrompt}
	if prompt.Model == "" {
		prompt.Model = e.provider.DefaultModel()
	}

	if config.SystemPrompt != "" {
		prompt.System, err = template.RenderText(config.SystemPrompt, in.Context)
		if err != nil {
			return in.Fail(ctx, execerr.Validation(e.op(), "Invalid system prompt: %v", err))
		}
	}

	prompt.User, err = template.RenderText(config.UserPrompt, in.Context)
	if err != nil {
		return in.Fail(ctx, execerr.Validation(e.op(), "Invalid user prompt: %v", err))
	}

	secret, err := e.resolver.Resolve(ctx, in.Steps, e.op(), config.CredentialID, in.UserID, e.provider.CredentialType())
	if err != nil {
		return in.Fail(ctx, err)
	}

	result, err := step.Run(ctx, in.Steps, stepName(e.provider), func(ctx context.Context) (Result, error) {
		text, err := e.provider.Generate(ctx, e.client, secret.Value(), prompt)

		return Result{Text: text}, err
	})
	if err != nil {
		return in.Fail(ctx, err)
	}

	in.Log().DebugContext(ctx, "Text generated", "node_id", in.NodeID, "provider", e.provider.Label(), "model", prompt.Model)

	return in.Succeed(ctx, in.Context.With(config.VariableName, result))
}

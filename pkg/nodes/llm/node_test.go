package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/nodebase/pkg/credentials"
	"github.com/dukex/nodebase/pkg/execerr"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/nodes/llm"
	"github.com/dukex/nodebase/pkg/persistence"
	"github.com/dukex/nodebase/pkg/protocol"
	"github.com/dukex/nodebase/pkg/status"
	"github.com/dukex/nodebase/pkg/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type credentialStore map[string]*models.Credential

func (s credentialStore) GetByID(_ context.Context, id, userID string) (*models.Credential, error) {
	credential, ok := s[id]
	if !ok || credential.UserID != userID {
		return nil, persistence.ErrCredentialNotFound
	}

	return credential, nil
}

func newResolver(t *testing.T, credentialType models.CredentialType, apiKey string) *credentials.Resolver {
	t.Helper()

	cipher, err := credentials.NewCipher("test-secret", "")
	require.NoError(t, err)

	blob, err := cipher.Encrypt(apiKey)
	require.NoError(t, err)

	store := credentialStore{
		"cred-1": {ID: "cred-1", UserID: "user-1", Type: credentialType, Value: blob},
	}

	return credentials.NewResolver(store, cipher, slog.Default())
}

func newInput(data map[string]any, published *[]status.Status) protocol.Input {
	return protocol.Input{
		NodeID:  "llm-1",
		UserID:  "user-1",
		Data:    data,
		Context: models.Context{"manual": map[string]any{"topic": "Go & testing"}},
		Steps: step.New(step.NewMemoryStore(), "exec-1", step.WithRetryPolicy(step.RetryPolicy{
			MaxAttempts:     2,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
			Multiplier:      1,
		})),
		Publish: func(_ context.Context, s status.Status) {
			*published = append(*published, s)
		},
	}
}

func validData() map[string]any {
	return map[string]any{
		"variableName": "answer",
		"credentialId": "cred-1",
		"userPrompt":   "Write about {{manual.topic}}",
	}
}

func TestExecute_OpenAI(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-openai", r.Header.Get("Authorization"))

		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "gpt-4", body["model"])

		messages := body["messages"].([]any)
		assert.Equal(t, llm.DefaultSystemPrompt, messages[0].(map[string]any)["content"])
		assert.Equal(t, "Write about Go & testing", messages[1].(map[string]any)["content"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello"}}]}`))
	}))
	defer server.Close()

	var published []status.Status

	executor := llm.New(llm.NewOpenAI(server.URL), newResolver(t, models.CredentialTypeOpenAI, "sk-openai"), server.Client())

	result, err := executor.Execute(t.Context(), newInput(validData(), &published))
	require.NoError(t, err)

	assert.Equal(t, llm.Result{Text: "Hello"}, result["answer"])
	assert.Contains(t, result, "manual")
	assert.Equal(t, []status.Status{status.Loading, status.Success}, published)
}

func TestExecute_Anthropic(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "Be brief", body["system"])
		assert.Equal(t, "claude-test", body["model"])

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Hi there"}]}`))
	}))
	defer server.Close()

	data := validData()
	data["systemPrompt"] = "Be brief"
	data["model"] = "claude-test"

	var published []status.Status

	executor := llm.New(llm.NewAnthropic(server.URL), newResolver(t, models.CredentialTypeAnthropic, "sk-ant"), server.Client())

	result, err := executor.Execute(t.Context(), newInput(data, &published))
	require.NoError(t, err)
	assert.Equal(t, llm.Result{Text: "Hi there"}, result["answer"])
}

func TestExecute_Gemini(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-flash-latest:generateContent"), r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Gemini says hi"}]}}]}`))
	}))
	defer server.Close()

	var published []status.Status

	executor := llm.New(llm.NewGemini(server.URL), newResolver(t, models.CredentialTypeGemini, "g-key"), server.Client())

	result, err := executor.Execute(t.Context(), newInput(validData(), &published))
	require.NoError(t, err)
	assert.Equal(t, llm.Result{Text: "Gemini says hi"}, result["answer"])
}

func TestExecute_MissingCredentialIDMakesNoCall(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	data := validData()
	delete(data, "credentialId")

	var published []status.Status

	executor := llm.New(llm.NewOpenAI(server.URL), newResolver(t, models.CredentialTypeOpenAI, "sk"), server.Client())

	_, err := executor.Execute(t.Context(), newInput(data, &published))
	require.Error(t, err)
	assert.Equal(t, "OpenAI node: Credential ID is missing", err.Error())
	assert.False(t, execerr.IsRetriable(err))
	assert.Equal(t, []status.Status{status.Loading, status.Error}, published)
	assert.Zero(t, calls.Load())
}

func TestExecute_ValidationOrder(t *testing.T) {
	t.Parallel()

	var published []status.Status

	executor := llm.New(llm.NewOpenAI("http://unused.invalid"), newResolver(t, models.CredentialTypeOpenAI, "sk"), nil)

	_, err := executor.Execute(t.Context(), newInput(map[string]any{}, &published))
	require.Error(t, err)
	assert.Equal(t, "OpenAI node: Variable name is missing", err.Error())

	_, err = executor.Execute(t.Context(), newInput(map[string]any{"variableName": "x", "credentialId": "cred-1"}, &published))
	require.Error(t, err)
	assert.Equal(t, "OpenAI node: User prompt is missing", err.Error())
}

func TestExecute_CredentialFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		credentialType models.CredentialType
		credentialID   string
		message        string
	}{
		{"unknown credential", models.CredentialTypeOpenAI, "missing", "Credential not found"},
		{"wrong credential type", models.CredentialTypeGemini, "cred-1", "Credential type must be OPENAI"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := validData()
			data["credentialId"] = tt.credentialID

			var published []status.Status

			executor := llm.New(llm.NewOpenAI("http://unused.invalid"), newResolver(t, tt.credentialType, "sk"), nil)

			_, err := executor.Execute(t.Context(), newInput(data, &published))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
			assert.Equal(t, execerr.KindDependency, execerr.KindOf(err))
			assert.Equal(t, []status.Status{status.Loading, status.Error}, published)
		})
	}
}

func TestExecute_ProviderRejection(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer server.Close()

	var published []status.Status

	executor := llm.New(llm.NewOpenAI(server.URL), newResolver(t, models.CredentialTypeOpenAI, "sk"), server.Client())

	_, err := executor.Execute(t.Context(), newInput(validData(), &published))
	require.Error(t, err)
	assert.Equal(t, execerr.KindRejected, execerr.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.NotContains(t, err.Error(), "sk")
}

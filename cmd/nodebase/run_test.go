package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/nodebase/pkg/credentials"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/persistence/file"
	"github.com/dukex/nodebase/pkg/registry"
	"github.com/dukex/nodebase/pkg/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workflowYAML = `
id: greet
name: Greet
nodes:
  - id: start
    type: MANUAL_TRIGGER
    data: {}
  - id: lookup
    type: HTTP_REQUEST
    data:
      endpoint: "%s/users/{{manual.userId}}"
      method: GET
      variableName: user
edges:
  - source: start
    target: lookup
`

func writeWorkflow(t *testing.T, endpoint string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, fmt.Appendf(nil, workflowYAML, endpoint), 0o600))

	return path
}

func TestLoadWorkflow(t *testing.T) {
	wf, err := loadWorkflow(writeWorkflow(t, "https://example.com"))
	require.NoError(t, err)

	assert.Equal(t, "greet", wf.ID)
	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, models.NodeTypeHTTPRequest, wf.Nodes[1].Type)
	assert.Equal(t, "user", wf.Nodes[1].Data["variableName"])
	require.Len(t, wf.Edges, 1)

	_, err = loadWorkflow(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseInput(t *testing.T) {
	input, err := parseInput(`{"userId": 7}`)
	require.NoError(t, err)
	assert.InDelta(t, 7, input["userId"], 0)

	input, err = parseInput("")
	require.NoError(t, err)
	assert.Nil(t, input)

	_, err = parseInput("[1, 2]")
	require.Error(t, err)
}

func TestRunWorkflow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name": "Ada"}`))
	}))
	t.Cleanup(server.Close)

	wf, err := loadWorkflow(writeWorkflow(t, server.URL))
	require.NoError(t, err)

	p := file.NewPersistence(t.TempDir())
	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaultNodes(registry.Dependencies{})

	var statuses bytes.Buffer

	execution, err := runWorkflow(t.Context(), slog.Default(), p, reg, wf, map[string]any{"userId": 7}, step.DefaultRetryPolicy(), &statuses)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)

	raw, err := json.Marshal(execution.Output["user"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"httpResponse": {"status": 200, "statusText": "OK", "data": {"name": "Ada"}}}`, string(raw))

	assert.Contains(t, statuses.String(), "http-request-execution\tlookup\tloading")
	assert.Contains(t, statuses.String(), "http-request-execution\tlookup\tsuccess")

	stored, err := p.WorkflowRepository().GetByID(t.Context(), "greet")
	require.NoError(t, err)
	assert.Equal(t, "local", stored.UserID)
}

func TestAddCredential(t *testing.T) {
	p := file.NewPersistence(t.TempDir())

	cipher, err := credentials.NewCipher("secret", "")
	require.NoError(t, err)

	saved, err := addCredential(t.Context(), p, cipher, models.Credential{
		UserID: "user-1",
		Type:   models.CredentialTypeOpenAI,
	}, "sk-test")
	require.NoError(t, err)
	assert.NotEqual(t, "sk-test", saved.Value)
	assert.Equal(t, "OPENAI", saved.Name)

	stored, err := p.CredentialRepository().GetByID(t.Context(), saved.ID, "user-1")
	require.NoError(t, err)

	plain, err := cipher.Decrypt(stored.Value)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", plain)

	_, err = addCredential(t.Context(), p, cipher, models.Credential{UserID: "user-1", Type: "AWS"}, "x")
	require.ErrorIs(t, err, errInvalidCredentialType)
}

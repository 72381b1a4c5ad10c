package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/nodebase/pkg/metrics"
	"github.com/dukex/nodebase/pkg/mocks"
	"github.com/dukex/nodebase/pkg/persistence/file"
	"github.com/dukex/nodebase/pkg/registry"
	"github.com/dukex/nodebase/pkg/status"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaultNodes(registry.Dependencies{})

	m := metrics.New()
	m.NodeExecuted("HTTP_REQUEST", "success")

	api := NewAPI(
		slog.Default(),
		file.NewPersistence(t.TempDir()),
		reg,
		&mocks.MockEventBus{},
		status.NewTracker(slog.Default()),
		m,
	)

	return api.App()
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	code, body := get(t, setupTestApp(t), "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "nodebase API", body)
}

func TestAPI_HealthProbes(t *testing.T) {
	app := setupTestApp(t)

	code, body := get(t, app, "/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)

	code, _ = get(t, app, "/readyz")
	assert.Equal(t, http.StatusOK, code)
}

func TestAPI_Metrics(t *testing.T) {
	code, body := get(t, setupTestApp(t), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `nodebase_node_executions_total{node_type="HTTP_REQUEST",status="success"} 1`)
}

func TestAPI_CORS_Headers(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/workflows", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAPI_RecoversFromPanics(t *testing.T) {
	app := setupTestApp(t)
	app.Get("/explode", func(fiber.Ctx) error {
		panic("boom")
	})

	code, _ := get(t, app, "/explode")
	assert.Equal(t, http.StatusInternalServerError, code)

	code, _ = get(t, app, "/livez")
	assert.Equal(t, http.StatusOK, code)
}

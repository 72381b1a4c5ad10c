package postgresql_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/persistence"
	"github.com/dukex/nodebase/pkg/persistence/postgresql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	postgresContainer *postgres.PostgresContainer
	containerMu       sync.Mutex
)

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Children first, parents last
	for _, table := range []string{"step_results", "executions", "credentials", "workflow_edges", "workflow_nodes", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	containerMu.Lock()

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("nodebase_test"),
			postgres.WithUsername("nodebase"),
			postgres.WithPassword("nodebase"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			containerMu.Unlock()
			cancel()
			require.NoError(t, err)
		}
	}

	containerMu.Unlock()

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, p.Close(ctx))
		dropDb(ctx, t, databaseURL)
		cancel()
	})

	return p, ctx, databaseURL
}

func sampleWorkflow(userID string) *models.Workflow {
	return &models.Workflow{
		ID:     uuid.NewString(),
		Name:   "Form to Slack",
		UserID: userID,
		Nodes: []*models.Node{
			{ID: "trigger", Type: models.NodeTypeGoogleFormTrigger, Data: map[string]any{}},
			{ID: "notify", Type: models.NodeTypeSlack, Data: map[string]any{"variableName": "slack", "webhookUrl": "https://hooks.example.com", "content": "{{googleForm.formTitle}}"}},
			{ID: "log", Type: models.NodeTypeHTTPRequest, Data: map[string]any{"endpoint": "https://example.com", "method": "POST"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trigger", Target: "notify"},
			{ID: "e2", Source: "notify", Target: "log"},
		},
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)

	require.NoError(t, p.HealthCheck(ctx))

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, db.Close())
	}()

	for _, table := range []string{"workflows", "workflow_nodes", "workflow_edges", "credentials", "executions", "step_results"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestWorkflowRepository_RoundTrip(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	workflow := sampleWorkflow("user-1")
	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Form to Slack", loaded.Name)
	require.Len(t, loaded.Nodes, 3)
	assert.Equal(t, []string{"trigger", "notify", "log"}, []string{loaded.Nodes[0].ID, loaded.Nodes[1].ID, loaded.Nodes[2].ID})
	assert.Equal(t, "{{googleForm.formTitle}}", loaded.Nodes[1].Data["content"])
	require.Len(t, loaded.Edges, 2)

	loaded.Name = "Renamed"
	loaded.Edges = loaded.Edges[:1]
	require.NoError(t, repo.Save(ctx, loaded))

	reloaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", reloaded.Name)
	assert.Len(t, reloaded.Edges, 1)

	listed, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_DeleteCascades(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := sampleWorkflow("user-1")
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	execution := &models.Execution{ID: uuid.NewString(), WorkflowID: workflow.ID, Status: models.ExecutionStatusRunning}
	require.NoError(t, p.ExecutionRepository().Create(ctx, execution))
	require.NoError(t, p.StepRepository().Put(ctx, execution.ID, "trigger/google-form-trigger", json.RawMessage(`{}`)))

	require.NoError(t, p.WorkflowRepository().Delete(ctx, workflow.ID))

	_, err := p.ExecutionRepository().GetByID(ctx, execution.ID)
	assert.True(t, persistence.IsExecutionNotFound(err))

	_, found, err := p.StepRepository().Get(ctx, execution.ID, "trigger/google-form-trigger")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCredentialRepository_ScopedByOwner(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.CredentialRepository()

	credential := &models.Credential{ID: uuid.NewString(), Name: "WhatsApp", UserID: "user-1", Type: models.CredentialTypeWhatsApp, Value: "blob"}
	require.NoError(t, repo.Save(ctx, credential))

	loaded, err := repo.GetByID(ctx, credential.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.CredentialTypeWhatsApp, loaded.Type)

	_, err = repo.GetByID(ctx, credential.ID, "user-2")
	assert.True(t, persistence.IsCredentialNotFound(err))

	assert.True(t, persistence.IsCredentialNotFound(repo.Delete(ctx, credential.ID, "user-2")))
	require.NoError(t, repo.Delete(ctx, credential.ID, "user-1"))
}

func TestExecutionRepository_CompleteOnce(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := sampleWorkflow("user-1")
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	repo := p.ExecutionRepository()
	execution := &models.Execution{
		ID:         uuid.NewString(),
		WorkflowID: workflow.ID,
		Status:     models.ExecutionStatusRunning,
		Input:      models.Context{"googleForm": map[string]any{"formId": "f-1"}},
	}
	require.NoError(t, repo.Create(ctx, execution))

	err := repo.Create(ctx, &models.Execution{ID: execution.ID, WorkflowID: workflow.ID, Status: models.ExecutionStatusRunning})
	assert.True(t, errors.Is(err, persistence.ErrExecutionAlreadyExists))

	require.NoError(t, repo.Complete(ctx, &models.Execution{
		ID:           execution.ID,
		Status:       models.ExecutionStatusFailed,
		Error:        "Slack node: Webhook URL is missing",
		FailedNodeID: "notify",
	}))

	loaded, err := repo.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, loaded.Status)
	assert.Equal(t, "notify", loaded.FailedNodeID)
	assert.Equal(t, "f-1", loaded.Input["googleForm"].(map[string]any)["formId"])
	require.NotNil(t, loaded.CompletedAt)

	err = repo.Complete(ctx, &models.Execution{ID: execution.ID, Status: models.ExecutionStatusSuccess})
	assert.True(t, errors.Is(err, persistence.ErrExecutionAlreadyCompleted))

	err = repo.Complete(ctx, &models.Execution{ID: uuid.NewString(), Status: models.ExecutionStatusSuccess})
	assert.True(t, persistence.IsExecutionNotFound(err))

	listed, err := repo.ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestStepRepository_FirstWriteWins(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := sampleWorkflow("user-1")
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	execution := &models.Execution{ID: uuid.NewString(), WorkflowID: workflow.ID, Status: models.ExecutionStatusRunning}
	require.NoError(t, p.ExecutionRepository().Create(ctx, execution))

	repo := p.StepRepository()
	require.NoError(t, repo.Put(ctx, execution.ID, "notify/slack-webhook", json.RawMessage(`{"messageContent":"first"}`)))
	require.NoError(t, repo.Put(ctx, execution.ID, "notify/slack-webhook", json.RawMessage(`{"messageContent":"second"}`)))

	output, found, err := repo.Get(ctx, execution.ID, "notify/slack-webhook")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"messageContent":"first"}`, string(output))
}

package services

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/nodebase/pkg/events"
	"github.com/dukex/nodebase/pkg/mocks"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/persistence"
	"github.com/dukex/nodebase/pkg/persistence/file"
	"github.com/dukex/nodebase/pkg/registry"
	"github.com/dukex/nodebase/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newWorkflowService(t *testing.T) (*Workflow, *file.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaultNodes(registry.Dependencies{})

	return NewWorkflow(p, reg), p
}

func validWorkflow() *models.Workflow {
	wf := testutil.CreateTestWorkflow("Notify",
		testutil.CreateTestNode(testutil.WithID("trigger"), testutil.WithManualTrigger()),
		testutil.CreateTestNode(testutil.WithID("call"), testutil.WithData(map[string]any{
			"endpoint": "https://example.com/{{manual.id}}",
			"method":   "GET",
		})),
	)
	wf.UserID = "user-1"

	return wf
}

func TestWorkflow_Save_CreatesAndUpdates(t *testing.T) {
	service, p := newWorkflowService(t)

	created, err := service.Save(t.Context(), validWorkflow())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.Edges[0].ID)

	stored, err := p.WorkflowRepository().GetByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Notify", stored.Name)

	update := validWorkflow()
	update.ID = created.ID
	update.Name = "Renamed"

	updated, err := service.Save(t.Context(), update)
	require.NoError(t, err)
	assert.Equal(t, stored.CreatedAt, updated.CreatedAt)
	assert.False(t, updated.UpdatedAt.Before(stored.UpdatedAt))
}

func TestWorkflow_Save_DropsInitialPlaceholder(t *testing.T) {
	service, _ := newWorkflowService(t)

	wf := validWorkflow()
	wf.Nodes = append([]*models.Node{{ID: "initial", Type: models.NodeTypeInitial, Data: map[string]any{}}}, wf.Nodes...)
	wf.Edges = append(wf.Edges, &models.Edge{Source: "initial", Target: "call"})

	saved, err := service.Save(t.Context(), wf)
	require.NoError(t, err)

	for _, node := range saved.Nodes {
		assert.NotEqual(t, models.NodeTypeInitial, node.Type)
	}

	require.Len(t, saved.Edges, 1)
	assert.Equal(t, "trigger", saved.Edges[0].Source)
}

func TestWorkflow_Save_KeepsLoneInitial(t *testing.T) {
	service, _ := newWorkflowService(t)

	saved, err := service.Save(t.Context(), &models.Workflow{
		Name:   "Draft",
		UserID: "user-1",
		Nodes:  []*models.Node{{ID: "initial", Type: models.NodeTypeInitial, Data: map[string]any{}}},
	})
	require.NoError(t, err)
	require.Len(t, saved.Nodes, 1)
}

func TestWorkflow_Save_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(wf *models.Workflow)
		target error
	}{
		{
			name:   "missing name",
			mutate: func(wf *models.Workflow) { wf.Name = "" },
			target: ErrInvalidRequest,
		},
		{
			name: "two manual triggers",
			mutate: func(wf *models.Workflow) {
				wf.Nodes = append(wf.Nodes, &models.Node{ID: "manual-2", Type: models.NodeTypeManualTrigger, Data: map[string]any{}})
			},
			target: ErrMultipleManualTriggers,
		},
		{
			name:   "dangling edge",
			mutate: func(wf *models.Workflow) { wf.Edges = append(wf.Edges, &models.Edge{Source: "call", Target: "ghost"}) },
			target: ErrInvalidGraph,
		},
		{
			name: "cycle",
			mutate: func(wf *models.Workflow) {
				wf.Nodes = append(wf.Nodes, &models.Node{ID: "call-2", Type: models.NodeTypeHTTPRequest, Data: map[string]any{
					"endpoint": "https://example.com", "method": "POST",
				}})
				wf.Edges = append(wf.Edges,
					&models.Edge{Source: "call", Target: "call-2"},
					&models.Edge{Source: "call-2", Target: "call"},
				)
			},
			target: ErrInvalidGraph,
		},
		{
			name:   "node data violates schema",
			mutate: func(wf *models.Workflow) { wf.Nodes[1].Data["method"] = "TRACE" },
			target: ErrInvalidNodeData,
		},
		{
			name:   "missing required node field",
			mutate: func(wf *models.Workflow) { delete(wf.Nodes[1].Data, "endpoint") },
			target: ErrInvalidNodeData,
		},
		{
			name:   "null node",
			mutate: func(wf *models.Workflow) { wf.Nodes = append(wf.Nodes, nil) },
			target: ErrInvalidRequest,
		},
		{
			name:   "null edge",
			mutate: func(wf *models.Workflow) { wf.Edges = append(wf.Edges, nil) },
			target: ErrInvalidRequest,
		},
		{
			name: "unknown node type",
			mutate: func(wf *models.Workflow) {
				wf.Nodes = append(wf.Nodes, &models.Node{ID: "cron", Type: models.NodeType("SCHEDULE"), Data: map[string]any{}})
			},
			target: ErrInvalidNodeData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := newWorkflowService(t)

			wf := validWorkflow()
			tt.mutate(wf)

			_, err := service.Save(t.Context(), wf)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestWorkflow_Save_Nil(t *testing.T) {
	service, _ := newWorkflowService(t)

	_, err := service.Save(t.Context(), nil)
	assert.ErrorIs(t, err, ErrWorkflowNil)
}

func TestWorkflow_ExecutionsRequireWorkflow(t *testing.T) {
	service, _ := newWorkflowService(t)

	_, err := service.Executions(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestWorkflow_Delete(t *testing.T) {
	service, _ := newWorkflowService(t)

	saved, err := service.Save(t.Context(), validWorkflow())
	require.NoError(t, err)

	require.NoError(t, service.Delete(t.Context(), saved.ID))

	_, err = service.FetchByID(t.Context(), saved.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	assert.ErrorIs(t, service.Delete(t.Context(), saved.ID), ErrWorkflowNotFound)
}

func TestTrigger_PublishesNormalizedPayload(t *testing.T) {
	service, p := newWorkflowService(t)

	saved, err := service.Save(t.Context(), validWorkflow())
	require.NoError(t, err)

	var published events.Event

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, saved.ID, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2).(events.Event) }).
		Return(nil)

	triggers := NewTrigger(p, bus, slog.Default())

	executionID, err := triggers.Stripe(t.Context(), saved.ID, map[string]any{
		"id":       "evt_1",
		"type":     "charge.succeeded",
		"created":  1700000000,
		"livemode": false,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, executionID)

	require.NotNil(t, published)
	triggered, ok := published.(events.WorkflowTriggered)
	require.True(t, ok)
	assert.Equal(t, executionID, triggered.ExecutionID)
	assert.Equal(t, models.NodeTypeStripeTrigger, triggered.TriggerType)

	stripe := triggered.TriggerData["stripe"].(map[string]any)
	assert.Equal(t, "evt_1", stripe["eventId"])
	assert.Equal(t, "charge.succeeded", stripe["eventType"])
}

func TestTrigger_Errors(t *testing.T) {
	_, p := newWorkflowService(t)

	bus := &mocks.MockEventBus{}
	triggers := NewTrigger(p, bus, slog.Default())

	_, err := triggers.Manual(t.Context(), "", nil)
	assert.ErrorIs(t, err, ErrWorkflowIDRequired)
	assert.True(t, IsValidationError(err))

	_, err = triggers.GoogleForm(t.Context(), "missing", map[string]any{})
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrigger_PublishFailure(t *testing.T) {
	service, p := newWorkflowService(t)

	saved, err := service.Save(t.Context(), validWorkflow())
	require.NoError(t, err)

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, saved.ID, mock.Anything).Return(errors.New("broker down"))

	_, err = NewTrigger(p, bus, slog.Default()).Manual(t.Context(), saved.ID, nil)
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
}

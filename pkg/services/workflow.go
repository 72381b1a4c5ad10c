package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/persistence"
	"github.com/dukex/nodebase/pkg/registry"
	"github.com/dukex/nodebase/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

type Workflow struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validate    *validator.Validate
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence, registry *registry.Registry) *Workflow {
	return &Workflow{
		persistence: persistence,
		registry:    registry,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

// Executions lists a workflow's executions, most recent first.
func (w *Workflow) Executions(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	_, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return w.persistence.ExecutionRepository().ListByWorkflow(ctx, workflowID)
}

// Execution fetches one execution.
func (w *Workflow) Execution(ctx context.Context, id string) (*models.Execution, error) {
	return w.persistence.ExecutionRepository().GetByID(ctx, id)
}

// Save validates and stores a workflow, creating it when it has no ID.
//
// A workflow holds at most one manual trigger. The INITIAL placeholder is
// dropped, together with its edges, as soon as a real trigger exists. Edges
// must reference existing nodes, the graph must be acyclic and every node's
// data must satisfy its type's schema.
func (w *Workflow) Save(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}

	for _, edge := range wf.Edges {
		if edge != nil && edge.ID == "" {
			edge.ID = uuid.New().String()
		}
	}

	err := w.validate.Struct(wf)
	if err != nil {
		return nil, NewValidationError("Save", "INVALID_WORKFLOW", err.Error(), ErrInvalidRequest)
	}

	dropInitialPlaceholder(wf)

	err = w.validateNodes(wf)
	if err != nil {
		return nil, err
	}

	err = workflow.ValidateGraph(wf)
	if err != nil {
		return nil, NewValidationError("Save", "INVALID_GRAPH", err.Error(), ErrInvalidGraph)
	}

	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, wf.ID)
	switch {
	case err == nil:
		wf.CreatedAt = existing.CreatedAt
	case !persistence.IsWorkflowNotFound(err):
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	wf.UpdatedAt = time.Now().UTC()

	err = w.persistence.WorkflowRepository().Save(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return wf, nil
}

// Delete removes a workflow by its ID.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	_, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	err = w.persistence.WorkflowRepository().Delete(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

func dropInitialPlaceholder(wf *models.Workflow) {
	hasRealTrigger := false

	for _, node := range wf.Nodes {
		if node.Type.IsTrigger() && node.Type != models.NodeTypeInitial {
			hasRealTrigger = true

			break
		}
	}

	if !hasRealTrigger {
		return
	}

	removed := make(map[string]bool)
	nodes := make([]*models.Node, 0, len(wf.Nodes))

	for _, node := range wf.Nodes {
		if node.Type == models.NodeTypeInitial {
			removed[node.ID] = true

			continue
		}

		nodes = append(nodes, node)
	}

	edges := make([]*models.Edge, 0, len(wf.Edges))

	for _, edge := range wf.Edges {
		if !removed[edge.Source] && !removed[edge.Target] {
			edges = append(edges, edge)
		}
	}

	wf.Nodes = nodes
	wf.Edges = edges
}

func (w *Workflow) validateNodes(wf *models.Workflow) error {
	manualTriggers := 0

	for _, node := range wf.Nodes {
		if node.Type == models.NodeTypeManualTrigger {
			manualTriggers++
		}

		schema, err := w.registry.Schema(node.Type)
		if err != nil {
			return NewValidationError("Save", "UNKNOWN_NODE_TYPE",
				fmt.Sprintf("node %s has unknown type %q", node.ID, node.Type), ErrInvalidNodeData)
		}

		err = validateJSONSchema(node.Data, schema)
		if err != nil {
			return NewValidationError("Save", "INVALID_NODE_DATA",
				fmt.Sprintf("node %s: %v", node.ID, err), ErrInvalidNodeData)
		}
	}

	if manualTriggers > 1 {
		return NewValidationError("Save", "MULTIPLE_MANUAL_TRIGGERS", ErrMultipleManualTriggers.Error(), ErrMultipleManualTriggers)
	}

	return nil
}

// validateJSONSchema validates node data against the provided JSON schema.
func validateJSONSchema(data map[string]any, schema map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}

		return errors.New(strings.Join(messages, "; "))
	}

	return nil
}

package file

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/persistence"
)

const workflowsDir = "workflows"

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	store *store
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	err := validateID(workflowID)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", workflowID, err)
	}

	wr.store.mu.RLock()
	defer wr.store.mu.RUnlock()

	var workflow models.Workflow

	found, err := wr.store.read(workflowsDir, workflowID, &workflow)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewWorkflowError("GetByID", workflowID, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

// ListByUser returns the user's workflows, newest first.
func (wr *WorkflowRepository) ListByUser(_ context.Context, userID string) ([]*models.Workflow, error) {
	wr.store.mu.RLock()
	defer wr.store.mu.RUnlock()

	ids, err := wr.store.ids(workflowsDir)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		var workflow models.Workflow

		found, err := wr.store.read(workflowsDir, id, &workflow)
		if err != nil {
			return nil, err
		}

		if found && workflow.UserID == userID {
			workflows = append(workflows, &workflow)
		}
	}

	slices.SortFunc(workflows, func(a, b *models.Workflow) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return workflows, nil
}

// Save saves a workflow to the file system. Nodes keep their creation order.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	err := validateID(workflow.ID)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	for _, node := range workflow.Nodes {
		node.WorkflowID = workflow.ID
		if node.CreatedAt.IsZero() {
			node.CreatedAt = now
		}
	}

	for _, edge := range workflow.Edges {
		edge.WorkflowID = workflow.ID
		if edge.CreatedAt.IsZero() {
			edge.CreatedAt = now
		}
	}

	slices.SortStableFunc(workflow.Nodes, func(a, b *models.Node) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})

	return wr.store.write(workflowsDir, workflow.ID, workflow)
}

// Delete removes a workflow together with its executions and their step results.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	err := validateID(id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	executionIDs, err := wr.store.ids(executionsDir)
	if err != nil {
		return err
	}

	for _, executionID := range executionIDs {
		var execution models.Execution

		found, err := wr.store.read(executionsDir, executionID, &execution)
		if err != nil {
			return err
		}

		if !found || execution.WorkflowID != id {
			continue
		}

		err = wr.store.remove(stepsDir, executionID)
		if err != nil {
			return err
		}

		err = wr.store.remove(executionsDir, executionID)
		if err != nil {
			return err
		}
	}

	return wr.store.remove(workflowsDir, id)
}

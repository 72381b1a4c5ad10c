package file

import (
	"context"
	"slices"
	"time"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/persistence"
)

const executionsDir = "executions"

// ExecutionRepository handles execution-related file operations.
type ExecutionRepository struct {
	store *store
}

// Create stores a new execution. Creating an id twice fails with
// persistence.ErrExecutionAlreadyExists.
func (er *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	err := validateID(execution.ID)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	var existing models.Execution

	found, err := er.store.read(executionsDir, execution.ID, &existing)
	if err != nil {
		return err
	}

	if found {
		return persistence.NewExecutionError("Create", execution.ID, persistence.ErrExecutionAlreadyExists)
	}

	if execution.StartedAt.IsZero() {
		execution.StartedAt = time.Now().UTC()
	}

	return er.store.write(executionsDir, execution.ID, execution)
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	err := validateID(id)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	er.store.mu.RLock()
	defer er.store.mu.RUnlock()

	var execution models.Execution

	found, err := er.store.read(executionsDir, id, &execution)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	return &execution, nil
}

// ListByWorkflow returns a workflow's executions, most recent first.
func (er *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.Execution, error) {
	er.store.mu.RLock()
	defer er.store.mu.RUnlock()

	ids, err := er.store.ids(executionsDir)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.Execution, 0)

	for _, id := range ids {
		var execution models.Execution

		found, err := er.store.read(executionsDir, id, &execution)
		if err != nil {
			return nil, err
		}

		if found && execution.WorkflowID == workflowID {
			executions = append(executions, &execution)
		}
	}

	slices.SortFunc(executions, func(a, b *models.Execution) int {
		return b.StartedAt.Compare(a.StartedAt)
	})

	return executions, nil
}

// Complete records the terminal state of a RUNNING execution.
func (er *ExecutionRepository) Complete(_ context.Context, execution *models.Execution) error {
	err := validateID(execution.ID)
	if err != nil {
		return persistence.NewExecutionError("Complete", execution.ID, err)
	}

	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	var stored models.Execution

	found, err := er.store.read(executionsDir, execution.ID, &stored)
	if err != nil {
		return err
	}

	if !found {
		return persistence.NewExecutionError("Complete", execution.ID, persistence.ErrExecutionNotFound)
	}

	if stored.Status.IsTerminal() {
		return persistence.NewExecutionError("Complete", execution.ID, persistence.ErrExecutionAlreadyCompleted)
	}

	stored.Status = execution.Status
	stored.Error = execution.Error
	stored.FailedNodeID = execution.FailedNodeID
	stored.Output = execution.Output
	stored.CompletedAt = execution.CompletedAt

	if stored.CompletedAt == nil {
		now := time.Now().UTC()
		stored.CompletedAt = &now
	}

	return er.store.write(executionsDir, execution.ID, &stored)
}

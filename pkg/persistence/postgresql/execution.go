package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/persistence"
)

// ExecutionRepository handles execution rows.
type ExecutionRepository struct {
	db *sql.DB
}

func NewExecutionRepository(db *sql.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

const executionColumns = `id, workflow_id, status, error, failed_node_id, input, output, started_at, completed_at`

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution   models.Execution
		input       []byte
		output      []byte
		completedAt sql.NullTime
	)

	err := row.Scan(&execution.ID, &execution.WorkflowID, &execution.Status, &execution.Error,
		&execution.FailedNodeID, &input, &output, &execution.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if len(input) > 0 {
		err = json.Unmarshal(input, &execution.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution input: %w", err)
		}
	}

	if len(output) > 0 {
		err = json.Unmarshal(output, &execution.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution output: %w", err)
		}
	}

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	return &execution, nil
}

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	if execution.StartedAt.IsZero() {
		execution.StartedAt = time.Now().UTC()
	}

	input, err := json.Marshal(execution.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal execution input: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO executions (id, workflow_id, status, input, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, execution.ID, execution.WorkflowID, execution.Status, nullJSON(input), execution.StartedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewExecutionError("Create", execution.ID, persistence.ErrExecutionAlreadyExists)
		}

		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = $1`, id)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE workflow_id = $1 ORDER BY started_at DESC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	return executions, rows.Err()
}

// Complete writes the terminal state. The update only matches RUNNING rows,
// so a second terminal write is refused.
func (r *ExecutionRepository) Complete(ctx context.Context, execution *models.Execution) error {
	completedAt := time.Now().UTC()
	if execution.CompletedAt != nil {
		completedAt = *execution.CompletedAt
	}

	output, err := json.Marshal(execution.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal execution output: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE executions
		SET status = $2, error = $3, failed_node_id = $4, output = $5, completed_at = $6
		WHERE id = $1 AND status = 'RUNNING'
	`, execution.ID, execution.Status, execution.Error, execution.FailedNodeID, nullJSON(output), completedAt)
	if err != nil {
		return persistence.NewExecutionError("Complete", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected > 0 {
		return nil
	}

	var exists bool

	err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM executions WHERE id = $1)`, execution.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check execution: %w", err)
	}

	if !exists {
		return persistence.NewExecutionError("Complete", execution.ID, persistence.ErrExecutionNotFound)
	}

	return persistence.NewExecutionError("Complete", execution.ID, persistence.ErrExecutionAlreadyCompleted)
}

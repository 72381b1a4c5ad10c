package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// StepRepository stores memoized step outputs in step_results.
type StepRepository struct {
	db *sql.DB
}

func NewStepRepository(db *sql.DB) *StepRepository {
	return &StepRepository{db: db}
}

func (r *StepRepository) Get(ctx context.Context, executionID, name string) (json.RawMessage, bool, error) {
	var output []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT output FROM step_results WHERE execution_id = $1 AND name = $2`, executionID, name).Scan(&output)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to read step result: %w", err)
	}

	return json.RawMessage(output), true, nil
}

// Put keeps the first output recorded for a step.
func (r *StepRepository) Put(ctx context.Context, executionID, name string, output json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO step_results (execution_id, name, output)
		VALUES ($1, $2, $3)
		ON CONFLICT (execution_id, name) DO NOTHING
	`, executionID, name, string(output))
	if err != nil {
		return fmt.Errorf("failed to record step result: %w", err)
	}

	return nil
}

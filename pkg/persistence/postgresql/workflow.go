package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var workflow models.Workflow

	err := row.Scan(&workflow.ID, &workflow.Name, &workflow.UserID, &workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , user_id
		  , created_at
		  , updated_at
		FROM workflows
		WHERE id = $1
	`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	err = r.loadGraph(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// ListByUser returns the user's workflows, newest first.
func (r *WorkflowRepository) ListByUser(ctx context.Context, userID string) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , user_id
		  , created_at
		  , updated_at
		FROM workflows
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer r.closeRows(ctx, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	for _, workflow := range workflows {
		err = r.loadGraph(ctx, workflow)
		if err != nil {
			return nil, err
		}
	}

	return workflows, nil
}

// Save upserts the workflow and replaces its nodes and edges in one transaction.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) (err error) {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (id, name, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			user_id = EXCLUDED.user_id,
			updated_at = EXCLUDED.updated_at
	`, workflow.ID, workflow.Name, workflow.UserID, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_edges WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing edges: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_nodes WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	err = saveNodes(ctx, tx, workflow, now)
	if err != nil {
		return err
	}

	err = saveEdges(ctx, tx, workflow, now)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func saveNodes(ctx context.Context, tx *sql.Tx, workflow *models.Workflow, now time.Time) error {
	query := `
		INSERT INTO workflow_nodes (workflow_id, id, name, node_type, data, position_x, position_y, ordinal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for i, node := range workflow.Nodes {
		node.WorkflowID = workflow.ID
		if node.CreatedAt.IsZero() {
			node.CreatedAt = now
		}

		data := node.Data
		if data == nil {
			data = map[string]any{}
		}

		dataJSON, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal data of node %s: %w", node.ID, err)
		}

		_, err = tx.ExecContext(ctx, query,
			workflow.ID, node.ID, node.Name, node.Type, string(dataJSON), node.PositionX, node.PositionY, i, node.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save node %s: %w", node.ID, err)
		}
	}

	return nil
}

func saveEdges(ctx context.Context, tx *sql.Tx, workflow *models.Workflow, now time.Time) error {
	query := `
		INSERT INTO workflow_edges (workflow_id, id, source_node_id, target_node_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	for _, edge := range workflow.Edges {
		edge.WorkflowID = workflow.ID
		if edge.CreatedAt.IsZero() {
			edge.CreatedAt = now
		}

		if edge.ID == "" {
			edge.ID = uuid.NewString()
		}

		_, err := tx.ExecContext(ctx, query, workflow.ID, edge.ID, edge.Source, edge.Target, edge.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save edge %s: %w", edge.ID, err)
		}
	}

	return nil
}

// Delete removes a workflow; nodes, edges, executions and step results cascade.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) loadGraph(ctx context.Context, workflow *models.Workflow) error {
	nodes, err := r.loadNodes(ctx, workflow.ID)
	if err != nil {
		return err
	}

	edges, err := r.loadEdges(ctx, workflow.ID)
	if err != nil {
		return err
	}

	workflow.Nodes = nodes
	workflow.Edges = edges

	return nil
}

func (r *WorkflowRepository) loadNodes(ctx context.Context, workflowID string) ([]*models.Node, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, node_type, data, position_x, position_y, created_at
		FROM workflow_nodes
		WHERE workflow_id = $1
		ORDER BY created_at, ordinal
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow nodes: %w", err)
	}

	defer r.closeRows(ctx, rows)

	nodes := make([]*models.Node, 0)

	for rows.Next() {
		node := &models.Node{WorkflowID: workflowID}

		var dataJSON []byte

		err := rows.Scan(&node.ID, &node.Name, &node.Type, &dataJSON, &node.PositionX, &node.PositionY, &node.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow node: %w", err)
		}

		err = json.Unmarshal(dataJSON, &node.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal data of node %s: %w", node.ID, err)
		}

		nodes = append(nodes, node)
	}

	return nodes, rows.Err()
}

func (r *WorkflowRepository) loadEdges(ctx context.Context, workflowID string) ([]*models.Edge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_node_id, target_node_id, created_at
		FROM workflow_edges
		WHERE workflow_id = $1
		ORDER BY created_at, id
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow edges: %w", err)
	}

	defer r.closeRows(ctx, rows)

	edges := make([]*models.Edge, 0)

	for rows.Next() {
		edge := &models.Edge{WorkflowID: workflowID}

		err := rows.Scan(&edge.ID, &edge.Source, &edge.Target, &edge.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow edge: %w", err)
		}

		edges = append(edges, edge)
	}

	return edges, rows.Err()
}

func (r *WorkflowRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

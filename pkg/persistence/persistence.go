// Package persistence provides data storage abstraction layer for workflows, credentials and executions.
package persistence

import (
	"context"
	"encoding/json"

	"github.com/dukex/nodebase/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	CredentialRepository() CredentialRepository
	ExecutionRepository() ExecutionRepository
	StepRepository() StepRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflows together with their nodes and edges.
// Delete cascades to the workflow's executions.
type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

// CredentialRepository is scoped by owner on every read and delete.
type CredentialRepository interface {
	GetByID(ctx context.Context, id, userID string) (*models.Credential, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Credential, error)
	Save(ctx context.Context, credential *models.Credential) error
	Delete(ctx context.Context, id, userID string) error
}

// ExecutionRepository tracks execution rows. Complete moves a RUNNING
// execution to its terminal state and refuses any later terminal write.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.Execution) error
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
	Complete(ctx context.Context, execution *models.Execution) error
}

// StepRepository memoizes step outputs per execution; it satisfies step.Store.
type StepRepository interface {
	Get(ctx context.Context, executionID, name string) (json.RawMessage, bool, error)
	Put(ctx context.Context, executionID, name string, output json.RawMessage) error
}

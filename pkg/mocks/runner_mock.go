package mocks

import (
	"context"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/workflow"
	"github.com/stretchr/testify/mock"
)

// MockRunner is a mock implementation of worker.Runner interface.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Execute(ctx context.Context, req workflow.Request) (*models.Execution, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Execution), args.Error(1)
}

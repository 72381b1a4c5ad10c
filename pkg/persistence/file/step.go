package file

import (
	"context"
	"encoding/json"

	"github.com/dukex/nodebase/pkg/persistence"
)

const stepsDir = "steps"

// StepRepository keeps every step result of an execution in one file,
// keyed by step name.
type StepRepository struct {
	store *store
}

func (sr *StepRepository) Get(_ context.Context, executionID, name string) (json.RawMessage, bool, error) {
	err := validateID(executionID)
	if err != nil {
		return nil, false, persistence.NewExecutionError("GetStep", executionID, err)
	}

	sr.store.mu.RLock()
	defer sr.store.mu.RUnlock()

	steps := map[string]json.RawMessage{}

	_, err = sr.store.read(stepsDir, executionID, &steps)
	if err != nil {
		return nil, false, err
	}

	output, ok := steps[name]

	return output, ok, nil
}

// Put records output unless the step already has a result.
func (sr *StepRepository) Put(_ context.Context, executionID, name string, output json.RawMessage) error {
	err := validateID(executionID)
	if err != nil {
		return persistence.NewExecutionError("PutStep", executionID, err)
	}

	sr.store.mu.Lock()
	defer sr.store.mu.Unlock()

	steps := map[string]json.RawMessage{}

	_, err = sr.store.read(stepsDir, executionID, &steps)
	if err != nil {
		return err
	}

	if _, ok := steps[name]; ok {
		return nil
	}

	steps[name] = output

	return sr.store.write(stepsDir, executionID, steps)
}

// Package file provides file-based persistence for workflows, credentials, executions and step results.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/nodebase/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Every record is one JSON file under root; a single lock serializes writers.
type Persistence struct {
	root           string
	mu             *sync.RWMutex
	workflowRepo   *WorkflowRepository
	credentialRepo *CredentialRepository
	executionRepo  *ExecutionRepository
	stepRepo       *StepRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	mu := &sync.RWMutex{}
	store := &store{root: cleanRoot, mu: mu}

	return &Persistence{
		root:           cleanRoot,
		mu:             mu,
		workflowRepo:   &WorkflowRepository{store: store},
		credentialRepo: &CredentialRepository{store: store},
		executionRepo:  &ExecutionRepository{store: store},
		stepRepo:       &StepRepository{store: store},
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) CredentialRepository() persistence.CredentialRepository {
	return fp.credentialRepo
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) StepRepository() persistence.StepRepository {
	return fp.stepRepo
}

type store struct {
	root string
	mu   *sync.RWMutex
}

// validateID rejects identifiers that could escape the collection directory.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", persistence.ErrInvalidID)
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q contains invalid characters", persistence.ErrInvalidID, id)
	}

	return nil
}

func (s *store) path(collection, id string) string {
	return filepath.Join(s.root, collection, id+".json")
}

// read decodes collection/id into out. It reports false when the file does not exist.
func (s *store) read(collection, id string, out any) (bool, error) {
	body, err := os.ReadFile(s.path(collection, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s %s: %w", collection, id, err)
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s %s: %w", collection, id, err)
	}

	return true, nil
}

// write stores value atomically by renaming a temporary file into place.
func (s *store) write(collection, id string, value any) error {
	dir := filepath.Join(s.root, collection)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", collection, id, err)
	}

	tmp, err := os.CreateTemp(dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write %s %s: %w", collection, id, err)
	}

	_, err = tmp.Write(data)
	closeErr := tmp.Close()

	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s %s: %w", collection, id, err)
	}

	return os.Rename(tmp.Name(), s.path(collection, id))
}

func (s *store) remove(collection, id string) error {
	err := os.Remove(s.path(collection, id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s %s: %w", collection, id, err)
	}

	return nil
}

// ids lists the record ids of a collection.
func (s *store) ids(collection string) ([]string, error) {
	matches, err := fs.Glob(os.DirFS(filepath.Join(s.root, collection)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, strings.TrimSuffix(match, ".json"))
	}

	return ids, nil
}

package step

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps step outputs in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]map[string]json.RawMessage)}
}

func (s *MemoryStore) Get(_ context.Context, executionID, name string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	output, ok := s.results[executionID][name]

	return output, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, executionID, name string, output json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, ok := s.results[executionID]
	if !ok {
		steps = make(map[string]json.RawMessage)
		s.results[executionID] = steps
	}

	if _, exists := steps[name]; !exists {
		steps[name] = append(json.RawMessage(nil), output...)
	}

	return nil
}

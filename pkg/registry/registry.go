// Package registry maps node types to their executors.
package registry

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/dukex/nodebase/pkg/execerr"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/protocol"
)

type Registry struct {
	logger *slog.Logger
	mu     sync.RWMutex
	nodes  map[models.NodeType]protocol.NodeFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger: log.With("module", "registry"),
		nodes:  make(map[models.NodeType]protocol.NodeFactory),
	}
}

// RegisterNode adds or replaces the executor for its node type.
func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nodes[factory.Type()] = factory
	r.logger.Debug("Registered node", "node_type", factory.Type(), "name", factory.Name())
}

// Get returns the executor for nodeType. An unregistered type is a
// configuration error wrapping execerr.ErrUnknownNodeType.
func (r *Registry) Get(nodeType models.NodeType) (protocol.NodeFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.nodes[nodeType]
	if !ok {
		return nil, execerr.Configuration("registry", fmt.Errorf("%w: %q", execerr.ErrUnknownNodeType, nodeType))
	}

	return factory, nil
}

// Validate checks that every node type has an executor.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []models.NodeType

	for _, nodeType := range models.NodeTypes() {
		if _, ok := r.nodes[nodeType]; !ok {
			missing = append(missing, nodeType)
		}
	}

	if len(missing) > 0 {
		return execerr.Configuration("registry", fmt.Errorf("%w: no executor for %v", execerr.ErrUnknownNodeType, missing))
	}

	return nil
}

// Types returns the registered node types in enumeration order.
func (r *Registry) Types() []models.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := slices.Collect(maps.Keys(r.nodes))
	order := models.NodeTypes()

	slices.SortFunc(types, func(a, b models.NodeType) int {
		return slices.Index(order, a) - slices.Index(order, b)
	})

	return types
}

// NodeInfo describes a registered node type.
type NodeInfo struct {
	Type        models.NodeType     `json:"type"`
	Category    models.CategoryType `json:"category"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Schema      map[string]any      `json:"schema"`
}

func (r *Registry) Nodes() []NodeInfo {
	types := r.Types()

	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]NodeInfo, 0, len(types))

	for _, nodeType := range types {
		factory := r.nodes[nodeType]
		infos = append(infos, NodeInfo{
			Type:        nodeType,
			Category:    nodeType.Category(),
			Name:        factory.Name(),
			Description: factory.Description(),
			Schema:      factory.Schema(),
		})
	}

	return infos
}

// Schema returns the data schema of a registered node type.
func (r *Registry) Schema(nodeType models.NodeType) (map[string]any, error) {
	factory, err := r.Get(nodeType)
	if err != nil {
		return nil, err
	}

	return factory.Schema(), nil
}

// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/dukex/nodebase/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates an HTTP request node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:   uuid.New().String(),
		Name: "Test Node",
		Type: models.NodeTypeHTTPRequest,
		Data: map[string]any{
			"endpoint": "https://example.com",
			"method":   "GET",
		},
		PositionX: 100,
		PositionY: 200,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithManualTrigger turns the node into a manual trigger.
func WithManualTrigger() func(*models.Node) {
	return func(n *models.Node) {
		n.Type = models.NodeTypeManualTrigger
		n.Data = map[string]any{}
	}
}

// WithID sets the node id.
func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

// WithType sets the node type.
func WithType(nodeType models.NodeType) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

// WithData sets the node data.
func WithData(data map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Data = data
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.Node) {
	return func(n *models.Node) {
		n.Name = name
	}
}

// CreateTestWorkflow links nodes into a chain in the given order.
func CreateTestWorkflow(name string, nodes ...*models.Node) *models.Workflow {
	edges := make([]*models.Edge, 0, len(nodes))

	for i := 1; i < len(nodes); i++ {
		edges = append(edges, &models.Edge{
			ID:     uuid.New().String(),
			Source: nodes[i-1].ID,
			Target: nodes[i].ID,
		})
	}

	return &models.Workflow{
		Name:   name,
		UserID: "test-user",
		Nodes:  nodes,
		Edges:  edges,
	}
}

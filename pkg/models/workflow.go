package models

import (
	"encoding/json"
	"time"
)

// Workflow is a user-owned graph of nodes. The order of Nodes is the node
// creation order and is used to break ties during traversal.
type Workflow struct {
	ID        string    `json:"id"         yaml:"id"`
	Name      string    `json:"name"       yaml:"name"       validate:"required,min=1"`
	UserID    string    `json:"user_id"    yaml:"user_id"    validate:"required"`
	Nodes     []*Node   `json:"nodes"      yaml:"nodes"      validate:"dive,required"`
	Edges     []*Edge   `json:"edges"      yaml:"edges"      validate:"dive,required"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// NodeByID returns the node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// TriggerNodes returns the trigger nodes in creation order.
func (w *Workflow) TriggerNodes() []*Node {
	triggers := make([]*Node, 0, 1)

	for _, node := range w.Nodes {
		if node.Type.IsTrigger() {
			triggers = append(triggers, node)
		}
	}

	return triggers
}

// Clone returns a deep copy, used to hand the runner an immutable snapshot.
func (w *Workflow) Clone() (*Workflow, error) {
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}

	var clone Workflow

	err = json.Unmarshal(raw, &clone)
	if err != nil {
		return nil, err
	}

	return &clone, nil
}

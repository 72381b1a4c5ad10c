package web

import (
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/status"
)

// SaveWorkflowRequest is the body of POST /workflows. An empty ID creates a
// new workflow.
type SaveWorkflowRequest struct {
	ID     string         `json:"id,omitempty"`
	Name   string         `json:"name"          validate:"required,min=1"`
	UserID string         `json:"user_id"       validate:"required"`
	Nodes  []*models.Node `json:"nodes"`
	Edges  []*models.Edge `json:"edges"`
}

// ToModel builds the workflow handed to the service.
func (r SaveWorkflowRequest) ToModel() *models.Workflow {
	nodes := r.Nodes
	if nodes == nil {
		nodes = []*models.Node{}
	}

	edges := r.Edges
	if edges == nil {
		edges = []*models.Edge{}
	}

	return &models.Workflow{
		ID:     r.ID,
		Name:   r.Name,
		UserID: r.UserID,
		Nodes:  nodes,
		Edges:  edges,
	}
}

// TriggerResponse is returned with 202 by every trigger endpoint.
type TriggerResponse struct {
	ExecutionID string `json:"executionId"`
}

// NodeStatusResponse reports the latest status seen on a channel for a node.
type NodeStatusResponse struct {
	Channel string `json:"channel"`
	status.Message
}

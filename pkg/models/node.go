// Package models defines the core domain types for workflows, nodes, credentials and executions.
package models

import (
	"slices"
	"time"
)

// NodeType is the closed set of node kinds a workflow can contain.
type NodeType string

const (
	NodeTypeInitial           NodeType = "INITIAL"
	NodeTypeManualTrigger     NodeType = "MANUAL_TRIGGER"
	NodeTypeGoogleFormTrigger NodeType = "GOOGLE_FORM_TRIGGER"
	NodeTypeStripeTrigger     NodeType = "STRIPE_TRIGGER"
	NodeTypeHTTPRequest       NodeType = "HTTP_REQUEST"
	NodeTypeOpenAI            NodeType = "OPENAI"
	NodeTypeAnthropic         NodeType = "ANTHROPIC"
	NodeTypeGemini            NodeType = "GEMINI"
	NodeTypeDiscord           NodeType = "DISCORD"
	NodeTypeSlack             NodeType = "SLACK"
	NodeTypeWhatsApp          NodeType = "WHATSAPP"
)

// NodeTypes returns every member of the enumeration, triggers first.
func NodeTypes() []NodeType {
	return []NodeType{
		NodeTypeInitial,
		NodeTypeManualTrigger,
		NodeTypeGoogleFormTrigger,
		NodeTypeStripeTrigger,
		NodeTypeHTTPRequest,
		NodeTypeOpenAI,
		NodeTypeAnthropic,
		NodeTypeGemini,
		NodeTypeDiscord,
		NodeTypeSlack,
		NodeTypeWhatsApp,
	}
}

// Valid reports whether t is a member of the enumeration.
func (t NodeType) Valid() bool {
	return slices.Contains(NodeTypes(), t)
}

// IsTrigger reports whether nodes of this type start a workflow.
func (t NodeType) IsTrigger() bool {
	switch t {
	case NodeTypeInitial, NodeTypeManualTrigger, NodeTypeGoogleFormTrigger, NodeTypeStripeTrigger:
		return true
	default:
		return false
	}
}

type CategoryType string

const (
	CategoryTypeTrigger CategoryType = "trigger"
	CategoryTypeAction  CategoryType = "action"
)

func (t NodeType) Category() CategoryType {
	if t.IsTrigger() {
		return CategoryTypeTrigger
	}

	return CategoryTypeAction
}

// Node is a single vertex of a workflow graph. Data holds the type-specific
// configuration, possibly with template strings.
type Node struct {
	ID         string         `json:"id"                   yaml:"id"                   validate:"required"`
	WorkflowID string         `json:"workflow_id"          yaml:"workflow_id,omitempty"`
	Name       string         `json:"name,omitempty"       yaml:"name,omitempty"`
	Type       NodeType       `json:"type"                 yaml:"type"                 validate:"required"`
	Data       map[string]any `json:"data"                 yaml:"data"`
	PositionX  float64        `json:"position_x"           yaml:"position_x,omitempty"`
	PositionY  float64        `json:"position_y"           yaml:"position_y,omitempty"`
	CreatedAt  time.Time      `json:"created_at"           yaml:"created_at,omitempty"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID         string    `json:"id"          yaml:"id,omitempty"`
	WorkflowID string    `json:"workflow_id" yaml:"workflow_id,omitempty"`
	Source     string    `json:"source"      yaml:"source"      validate:"required"`
	Target     string    `json:"target"      yaml:"target"      validate:"required"`
	CreatedAt  time.Time `json:"created_at"  yaml:"created_at,omitempty"`
}

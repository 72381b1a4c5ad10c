// Package events defines the workflow lifecycle events exchanged between the
// ingress and the workers.
package events

import (
	"time"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every workflow lifecycle event.
const Topic = "nodebase.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowTriggeredEvent          EventType = "workflow.triggered"
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"
)

// Event is implemented by every event type.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// WorkflowTriggered asks a worker to run a workflow. ExecutionID is chosen by
// the ingress so redeliveries land on the same execution.
type WorkflowTriggered struct {
	BaseEvent

	ExecutionID string          `json:"execution_id"`
	TriggerType models.NodeType `json:"trigger_type"`
	TriggerData models.Context  `json:"trigger_data,omitempty"`
}

func (w WorkflowTriggered) GetType() EventType {
	return WorkflowTriggeredEvent
}

type WorkflowExecutionCompleted struct {
	BaseEvent

	ExecutionID  string         `json:"execution_id"`
	Status       string         `json:"status"`
	DurationMs   int64          `json:"duration_ms"`
	FinalResults models.Context `json:"final_results"`
}

func (w WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Status      string        `json:"status"`
	DurationMs  int64         `json:"duration_ms"`
	Error       WorkflowError `json:"error"`
}

type WorkflowError struct {
	NodeID  string `json:"node_id"`
	Message string `json:"message"`
}

func (w WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

// NewWorkflowTriggered builds the event for a new execution of workflowID.
func NewWorkflowTriggered(workflowID string, triggerType models.NodeType, data models.Context) WorkflowTriggered {
	return WorkflowTriggered{
		BaseEvent:   NewBaseEvent(WorkflowTriggeredEvent, workflowID),
		ExecutionID: uuid.NewString(),
		TriggerType: triggerType,
		TriggerData: data,
	}
}

// NewExecutionFinished returns the completed or failed event for a terminal
// execution.
func NewExecutionFinished(execution *models.Execution, workerID string) Event {
	var durationMs int64
	if execution.CompletedAt != nil {
		durationMs = execution.CompletedAt.Sub(execution.StartedAt).Milliseconds()
	}

	if execution.Status == models.ExecutionStatusFailed {
		event := WorkflowExecutionFailed{
			BaseEvent:   NewBaseEvent(WorkflowExecutionFailedEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			Status:      string(execution.Status),
			DurationMs:  durationMs,
			Error:       WorkflowError{NodeID: execution.FailedNodeID, Message: execution.Error},
		}
		event.WorkerID = workerID

		return event
	}

	event := WorkflowExecutionCompleted{
		BaseEvent:    NewBaseEvent(WorkflowExecutionCompletedEvent, execution.WorkflowID),
		ExecutionID:  execution.ID,
		Status:       string(execution.Status),
		DurationMs:   durationMs,
		FinalResults: execution.Output,
	}
	event.WorkerID = workerID

	return event
}

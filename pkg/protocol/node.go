// Package protocol defines the contract between the workflow runner and node executors.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/status"
	"github.com/dukex/nodebase/pkg/step"
)

// Input is everything an executor receives for one node invocation.
type Input struct {
	NodeID  string
	UserID  string
	Data    map[string]any
	Context models.Context
	Steps   step.Steps
	Publish status.PublishFunc
	Logger  *slog.Logger
}

// Executor runs one node type. On success it returns the input context plus
// exactly one new key; side effects only happen inside Steps.
type Executor interface {
	Execute(ctx context.Context, in Input) (models.Context, error)
}

// NodeFactory is an executor together with the metadata the registry and
// API expose for its node type.
type NodeFactory interface {
	Executor

	// Type returns the node type this executor handles
	Type() models.NodeType

	// Name returns the human-readable name for this node type
	Name() string

	// Description returns a description of what this node does
	Description() string

	// Schema returns the JSON schema for the node's data
	Schema() map[string]any
}

func (in Input) publish(ctx context.Context, s status.Status) {
	if in.Publish != nil {
		in.Publish(ctx, s)
	}
}

// Loading announces that the node started.
func (in Input) Loading(ctx context.Context) {
	in.publish(ctx, status.Loading)
}

// Succeed announces success and returns next unchanged.
func (in Input) Succeed(ctx context.Context, next models.Context) (models.Context, error) {
	in.publish(ctx, status.Success)

	return next, nil
}

// Fail announces the error status and returns err unchanged.
func (in Input) Fail(ctx context.Context, err error) (models.Context, error) {
	in.publish(ctx, status.Error)

	return nil, err
}

// Log returns the input logger, or the default logger when none was set.
func (in Input) Log() *slog.Logger {
	if in.Logger != nil {
		return in.Logger
	}

	return slog.Default()
}

// Package workflow traverses a workflow graph and records its execution.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/nodebase/pkg/metrics"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/otelhelper"
	"github.com/dukex/nodebase/pkg/persistence"
	"github.com/dukex/nodebase/pkg/protocol"
	"github.com/dukex/nodebase/pkg/registry"
	"github.com/dukex/nodebase/pkg/status"
	"github.com/dukex/nodebase/pkg/step"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrExecutorPanic = errors.New("node executor panicked")

// Request asks the runner to execute a workflow under a caller-chosen
// execution id. Input seeds the context and is ignored on replay.
type Request struct {
	ExecutionID string
	WorkflowID  string
	Input       models.Context
}

type Option func(*Runner)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithStepOptions configures the step facility handed to executors, for
// example its retry policy.
func WithStepOptions(opts ...step.Option) Option {
	return func(r *Runner) {
		r.stepOptions = append(r.stepOptions, opts...)
	}
}

type Runner struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	steps       step.Store
	publisher   status.Publisher
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	logger      *slog.Logger
	stepOptions []step.Option
}

// NewRunner builds a runner. A nil step store memoizes steps in the
// persistence layer.
func NewRunner(p persistence.Persistence, reg *registry.Registry, steps step.Store, publisher status.Publisher, opts ...Option) *Runner {
	if steps == nil {
		steps = p.StepRepository()
	}

	r := &Runner{
		persistence: p,
		registry:    reg,
		steps:       steps,
		publisher:   publisher,
		tracer:      otelhelper.NoopTracer(),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.metrics == nil {
		r.metrics = metrics.New()
	}

	r.logger = r.logger.With("module", "workflow_runner")

	return r
}

// Start executes a workflow under a new execution id and waits for it to
// finish.
func (r *Runner) Start(ctx context.Context, workflowID string, input models.Context) (*models.Execution, error) {
	return r.Execute(ctx, Request{
		ExecutionID: uuid.NewString(),
		WorkflowID:  workflowID,
		Input:       input,
	})
}

// Execute runs the request to completion and returns the terminal execution.
// A terminal execution is returned as is; a RUNNING one is replayed from its
// stored input. The returned error is only set when the execution could not
// be driven to a terminal state, in which case the request is safe to retry.
func (r *Runner) Execute(ctx context.Context, req Request) (*models.Execution, error) {
	logger := r.logger.With("workflow_id", req.WorkflowID, "execution_id", req.ExecutionID)

	execution, err := r.acquire(ctx, req, logger)
	if err != nil || execution.Status.IsTerminal() {
		return execution, err
	}

	ctx = context.WithoutCancel(ctx)

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, execution.WorkflowID),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
	)
	defer span.End()

	finished := r.metrics.ExecutionStarted()

	execution, err = r.traverse(ctx, execution, logger)
	if err != nil {
		otelhelper.SetError(span, err)
		finished("error")

		return nil, err
	}

	if execution.Status == models.ExecutionStatusFailed {
		otelhelper.SetError(span, errors.New(execution.Error))
	}

	finished(string(execution.Status))

	logger.InfoContext(ctx, "Execution finished", "status", execution.Status, "failed_node_id", execution.FailedNodeID)

	return execution, nil
}

func (r *Runner) acquire(ctx context.Context, req Request, logger *slog.Logger) (*models.Execution, error) {
	executions := r.persistence.ExecutionRepository()

	execution, err := executions.GetByID(ctx, req.ExecutionID)
	switch {
	case err == nil && execution.Status.IsTerminal():
		logger.InfoContext(ctx, "Execution already finished", "status", execution.Status)

		return execution, nil
	case err == nil:
		logger.InfoContext(ctx, "Replaying running execution")

		return execution, nil
	case !persistence.IsExecutionNotFound(err):
		return nil, fmt.Errorf("failed to load execution %s: %w", req.ExecutionID, err)
	}

	execution = &models.Execution{
		ID:         req.ExecutionID,
		WorkflowID: req.WorkflowID,
		Status:     models.ExecutionStatusRunning,
		Input:      req.Input.Clone(),
		StartedAt:  time.Now().UTC(),
	}

	err = executions.Create(ctx, execution)
	if errors.Is(err, persistence.ErrExecutionAlreadyExists) {
		return r.acquire(ctx, req, logger)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create execution %s: %w", req.ExecutionID, err)
	}

	logger.InfoContext(ctx, "Execution started")

	return execution, nil
}

func (r *Runner) traverse(ctx context.Context, execution *models.Execution, logger *slog.Logger) (*models.Execution, error) {
	stored, err := r.persistence.WorkflowRepository().GetByID(ctx, execution.WorkflowID)
	if persistence.IsWorkflowNotFound(err) {
		return r.complete(ctx, execution, "", nil, err)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", execution.WorkflowID, err)
	}

	snapshot, err := stored.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot workflow %s: %w", execution.WorkflowID, err)
	}

	order, err := ExecutionOrder(snapshot)
	if err != nil {
		logger.ErrorContext(ctx, "Workflow cannot be traversed", "error", err)

		return r.complete(ctx, execution, "", nil, err)
	}

	opts := append([]step.Option{
		step.WithLogger(logger),
		step.WithRetryHook(func(name string, _ error) {
			r.metrics.StepRetried(name)
		}),
	}, r.stepOptions...)

	steps := step.New(r.steps, execution.ID, opts...)
	current := execution.Input.Clone()

	for _, node := range order {
		next, err := r.runNode(ctx, steps, snapshot, node, current, logger)
		if err != nil {
			return r.complete(ctx, execution, node.ID, nil, err)
		}

		current = next
	}

	return r.complete(ctx, execution, "", current, nil)
}

func (r *Runner) runNode(
	ctx context.Context,
	steps *step.Tool,
	workflow *models.Workflow,
	node *models.Node,
	current models.Context,
	logger *slog.Logger,
) (next models.Context, err error) {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "workflow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	logger = logger.With("node_id", node.ID, "node_type", node.Type)
	reporter := status.NewNodeReporter(r.publisher, status.ChannelName(node.Type), node.ID, logger)

	defer func() {
		if recovered := recover(); recovered != nil {
			next = nil
			err = fmt.Errorf("%w: %v", ErrExecutorPanic, recovered)
		}

		if err != nil {
			reporter.Publish(ctx, status.Error)
			otelhelper.SetError(span, err)
			r.metrics.NodeExecuted(string(node.Type), string(status.Error))
			logger.WarnContext(ctx, "Node failed", "error", err)

			return
		}

		reporter.Publish(ctx, status.Success)
		r.metrics.NodeExecuted(string(node.Type), string(status.Success))
	}()

	executor, err := r.registry.Get(node.Type)
	if err != nil {
		logger.ErrorContext(ctx, "No executor for node type", "error", err)

		return nil, err
	}

	next, err = executor.Execute(ctx, protocol.Input{
		NodeID:  node.ID,
		UserID:  workflow.UserID,
		Data:    node.Data,
		Context: current,
		Steps:   steps.Scoped(node.ID),
		Publish: reporter.Publish,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	if next == nil {
		next = models.Context{}
	}

	return next, nil
}

// complete writes the terminal state once. When another writer got there
// first, the stored execution wins.
func (r *Runner) complete(
	ctx context.Context,
	execution *models.Execution,
	failedNodeID string,
	output models.Context,
	cause error,
) (*models.Execution, error) {
	now := time.Now().UTC()
	execution.CompletedAt = &now

	if cause != nil {
		execution.Status = models.ExecutionStatusFailed
		execution.FailedNodeID = failedNodeID
		execution.Error = cause.Error()
	} else {
		execution.Status = models.ExecutionStatusSuccess
		execution.Output = output
	}

	executions := r.persistence.ExecutionRepository()

	err := executions.Complete(ctx, execution)
	if errors.Is(err, persistence.ErrExecutionAlreadyCompleted) {
		return executions.GetByID(ctx, execution.ID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to complete execution %s: %w", execution.ID, err)
	}

	return execution, nil
}

package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukex/nodebase/pkg/channels/kafka"
	"github.com/dukex/nodebase/pkg/metrics"
	"github.com/dukex/nodebase/pkg/otelhelper"
	"github.com/dukex/nodebase/pkg/persistence"
	"github.com/dukex/nodebase/pkg/registry"
	"github.com/dukex/nodebase/pkg/step"
	"github.com/dukex/nodebase/pkg/workflow"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

// Runtime bundles what the API and the worker share: storage, executors,
// transport, tracing and metrics.
type Runtime struct {
	Logger      *slog.Logger
	Persistence persistence.Persistence
	Registry    *registry.Registry
	Transport   *Transport
	Steps       step.Store
	Metrics     *metrics.Metrics
	Tracer      trace.Tracer
	RetryPolicy step.RetryPolicy

	closers []func(ctx context.Context) error
}

// NewRuntime builds the runtime from CommonFlags. consumerGroup names the
// Kafka consumer group of this process.
func NewRuntime(ctx context.Context, command *cli.Command, service, consumerGroup string, logger *slog.Logger) (rt *Runtime, err error) {
	rt = &Runtime{
		Logger:      logger,
		Metrics:     metrics.New(),
		RetryPolicy: RetryPolicy(command),
	}

	defer func() {
		if err != nil {
			err = errors.Join(err, rt.Close(ctx))
		}
	}()

	tracer, shutdown, err := otelhelper.NewTracer(ctx, service, command.Bool("otel-enabled"))
	if err != nil {
		return rt, err
	}

	rt.Tracer = tracer
	rt.closers = append(rt.closers, shutdown)

	rt.Persistence, err = NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return rt, err
	}

	rt.closers = append(rt.closers, rt.Persistence.Close)

	rt.Registry, err = NewRegistry(logger, rt.Persistence, RegistryConfig{
		CredentialsSecret: command.String("credentials-secret"),
		CredentialsSalt:   command.String("credentials-salt"),
	})
	if err != nil {
		return rt, err
	}

	steps, closeSteps, err := NewStepStore(ctx, command.String("step-store-url"), rt.Persistence)
	if err != nil {
		return rt, err
	}

	rt.Steps = steps
	rt.closers = append(rt.closers, func(context.Context) error { return closeSteps() })

	rt.Transport, err = NewTransport(command.String("event-bus"), kafka.Config{
		Brokers:       command.String("kafka-brokers"),
		ConsumerGroup: consumerGroup,
	}, logger)
	if err != nil {
		return rt, err
	}

	rt.closers = append(rt.closers, func(context.Context) error { return rt.Transport.Close() })

	return rt, nil
}

// Runner returns a workflow runner publishing node status on the transport.
func (r *Runtime) Runner() *workflow.Runner {
	return workflow.NewRunner(
		r.Persistence,
		r.Registry,
		r.Steps,
		r.Transport.StatusBroker(),
		workflow.WithMetrics(r.Metrics),
		workflow.WithTracer(r.Tracer),
		workflow.WithLogger(r.Logger),
		workflow.WithStepOptions(step.WithRetryPolicy(r.RetryPolicy)),
	)
}

// Close releases resources in reverse order of acquisition.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error

	for i := len(r.closers) - 1; i >= 0; i-- {
		err := r.closers[i](ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	r.closers = nil

	return errors.Join(errs...)
}

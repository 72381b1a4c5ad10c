// Package step runs named, memoized units of work inside an execution.
//
// A step's result is stored under (executionID, name) as JSON. Running the
// same execution again returns the stored value instead of calling the step
// function, so side effects happen at most once per successful step.
package step

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dukex/nodebase/pkg/execerr"
)

var ErrRetriesExhausted = errors.New("step retries exhausted")

// Store persists step outputs. Put must keep the first value written for a
// key.
type Store interface {
	Get(ctx context.Context, executionID, name string) (json.RawMessage, bool, error)
	Put(ctx context.Context, executionID, name string, output json.RawMessage) error
}

// Steps is what executors see: a memoizing runner scoped to one execution.
type Steps interface {
	Do(ctx context.Context, name string, fn func(ctx context.Context) (any, error), out any) error
}

// RetryPolicy controls how retriable step failures are retried.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = p.InitialInterval
	exponential.MaxInterval = p.MaxInterval
	exponential.Multiplier = p.Multiplier
	exponential.MaxElapsedTime = 0
	exponential.Reset()

	attempts := max(p.MaxAttempts, 1)

	return backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(attempts-1)), ctx)
}

// Option configures a Tool.
type Option func(*Tool)

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(t *Tool) {
		t.policy = policy
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tool) {
		t.logger = logger
	}
}

// WithRetryHook is called before every retry with the step name and the error
// that caused it.
func WithRetryHook(hook func(name string, err error)) Option {
	return func(t *Tool) {
		t.onRetry = hook
	}
}

// Tool is the Steps implementation bound to one execution.
type Tool struct {
	store       Store
	executionID string
	prefix      string
	policy      RetryPolicy
	logger      *slog.Logger
	onRetry     func(name string, err error)
}

func New(store Store, executionID string, opts ...Option) *Tool {
	tool := &Tool{
		store:       store,
		executionID: executionID,
		policy:      DefaultRetryPolicy(),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(tool)
	}

	return tool
}

// Scoped returns a Tool whose step names are prefixed, so two nodes can use
// the same step name without sharing a memo entry.
func (t *Tool) Scoped(prefix string) *Tool {
	scoped := *t
	scoped.prefix = t.prefix + prefix + "/"

	return &scoped
}

func (t *Tool) key(name string) string {
	return t.prefix + name
}

// Do runs fn once per (execution, name) and decodes the memoized JSON result
// into out. Retriable errors are retried per the policy; errors are never
// memoized.
func (t *Tool) Do(ctx context.Context, name string, fn func(ctx context.Context) (any, error), out any) error {
	key := t.key(name)
	logger := t.logger.With("execution_id", t.executionID, "step", key)

	stored, found, err := t.store.Get(ctx, t.executionID, key)
	if err != nil {
		return fmt.Errorf("failed to read step %q: %w", key, err)
	}

	if found {
		logger.DebugContext(ctx, "Replaying memoized step")

		return decode(stored, out)
	}

	attempts := 0

	result, err := backoff.RetryNotifyWithData(func() (any, error) {
		attempts++

		value, err := fn(ctx)
		if err != nil && !execerr.IsRetriable(err) {
			return nil, backoff.Permanent(err)
		}

		return value, err
	}, t.policy.backOff(ctx), func(err error, wait time.Duration) {
		logger.WarnContext(ctx, "Step failed, retrying", "error", err, "attempt", attempts, "wait", wait)

		if t.onRetry != nil {
			t.onRetry(name, err)
		}
	})
	if err != nil {
		if execerr.IsRetriable(err) && ctx.Err() == nil {
			return fmt.Errorf("%w: step %q failed after %d attempts: %w", ErrRetriesExhausted, key, attempts, err)
		}

		return err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return execerr.Validation(key, "step result is not JSON encodable: %v", err)
	}

	err = t.store.Put(ctx, t.executionID, key, encoded)
	if err != nil {
		return fmt.Errorf("failed to record step %q: %w", key, err)
	}

	// Decode from the encoded form so a first run and a replay yield the same value.
	return decode(encoded, out)
}

func decode(raw json.RawMessage, out any) error {
	if out == nil {
		return nil
	}

	err := json.Unmarshal(raw, out)
	if err != nil {
		return fmt.Errorf("failed to decode step result: %w", err)
	}

	return nil
}

// Run is the typed form of Steps.Do.
func Run[T any](ctx context.Context, steps Steps, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T

	err := steps.Do(ctx, name, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, &out)

	return out, err
}

// Package redisstore keeps step outputs in Redis, one hash per execution.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "nodebase:steps:"

// Store implements step.Store on top of Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL expires an execution's step hash ttl after its last write.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New connects using a redis:// URL.
func New(redisURL string, opts ...Option) (*Store, error) {
	options, err := backend.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return NewFromClient(backend.NewClient(options), opts...), nil
}

func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: defaultPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(executionID string) string {
	return s.prefix + executionID
}

func (s *Store) Get(ctx context.Context, executionID, name string) (json.RawMessage, bool, error) {
	value, err := s.client.HGet(ctx, s.key(executionID), name).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to get step from redis: %w", err)
	}

	return value, true, nil
}

// Put records output unless the step already has a value.
func (s *Store) Put(ctx context.Context, executionID, name string, output json.RawMessage) error {
	pipe := s.client.TxPipeline()

	pipe.HSetNX(ctx, s.key(executionID), name, []byte(output))

	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(executionID), s.ttl)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save step to redis: %w", err)
	}

	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

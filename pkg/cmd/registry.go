// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/nodebase/pkg/credentials"
	"github.com/dukex/nodebase/pkg/nodes"
	"github.com/dukex/nodebase/pkg/persistence"
	"github.com/dukex/nodebase/pkg/registry"
	"github.com/dukex/nodebase/pkg/step"
	"github.com/dukex/nodebase/pkg/step/redisstore"
)

// RegistryConfig carries the settings the built-in executors need.
type RegistryConfig struct {
	CredentialsSecret string
	CredentialsSalt   string
	OpenAIBaseURL     string
	AnthropicBaseURL  string
	GeminiBaseURL     string
	WhatsAppBaseURL   string
}

// NewRegistry registers every built-in node and fails when one is missing.
// Without a credentials secret, credential-backed nodes fail at run time.
func NewRegistry(logger *slog.Logger, p persistence.Persistence, cfg RegistryConfig) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)

	deps := registry.Dependencies{
		HTTPClient:       nodes.NewHTTPClient(0),
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		GeminiBaseURL:    cfg.GeminiBaseURL,
		WhatsAppBaseURL:  cfg.WhatsAppBaseURL,
	}

	if cfg.CredentialsSecret != "" {
		cipher, err := credentials.NewCipher(cfg.CredentialsSecret, cfg.CredentialsSalt)
		if err != nil {
			return nil, err
		}

		deps.Credentials = credentials.NewResolver(p.CredentialRepository(), cipher, logger)
	} else {
		logger.Warn("No credentials secret configured; credential-backed nodes will fail")
	}

	reg.RegisterDefaultNodes(deps)

	err := reg.Validate()
	if err != nil {
		return nil, err
	}

	return reg, nil
}

// NewStepStore returns a Redis store for redis:// URLs and the persistence
// step repository otherwise. The returned close function is never nil.
func NewStepStore(ctx context.Context, storeURL string, p persistence.Persistence) (step.Store, func() error, error) {
	if !strings.HasPrefix(storeURL, "redis://") && !strings.HasPrefix(storeURL, "rediss://") {
		return p.StepRepository(), func() error { return nil }, nil
	}

	store, err := redisstore.New(storeURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open step store: %w", err)
	}

	err = store.Ping(ctx)
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("step store unreachable: %w", err), store.Close())
	}

	return store, store.Close, nil
}

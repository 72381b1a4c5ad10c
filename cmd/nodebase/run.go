package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dukex/nodebase/pkg/cmd"
	"github.com/dukex/nodebase/pkg/log"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/nodes/trigger"
	"github.com/dukex/nodebase/pkg/persistence"
	"github.com/dukex/nodebase/pkg/registry"
	"github.com/dukex/nodebase/pkg/services"
	"github.com/dukex/nodebase/pkg/status"
	"github.com/dukex/nodebase/pkg/step"
	"github.com/dukex/nodebase/pkg/workflow"
	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run a workflow file once and print the execution",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workflow",
				Aliases:  []string{"w"},
				Usage:    "Path to a YAML or JSON workflow file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "input",
				Usage: "JSON object seeded as the manual trigger payload",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Directory for workflows, executions and credentials",
				Value:   "./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "credentials-secret",
				Usage:   "Secret the credential encryption key is derived from",
				Sources: cli.EnvVars("CREDENTIALS_SECRET"),
			},
			&cli.StringFlag{
				Name:    "credentials-salt",
				Usage:   "Salt for the credential key derivation",
				Sources: cli.EnvVars("CREDENTIALS_SALT"),
			},
			&cli.IntFlag{
				Name:    "retry-max-attempts",
				Usage:   "Attempts per step before the node fails",
				Value:   step.DefaultRetryPolicy().MaxAttempts,
				Sources: cli.EnvVars("RETRY_MAX_ATTEMPTS"),
			},
			&cli.DurationFlag{
				Name:    "retry-initial-interval",
				Usage:   "Delay before the first step retry",
				Value:   step.DefaultRetryPolicy().InitialInterval,
				Sources: cli.EnvVars("RETRY_INITIAL_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("nodebase-run")

			wf, err := loadWorkflow(command.String("workflow"))
			if err != nil {
				return err
			}

			input, err := parseInput(command.String("input"))
			if err != nil {
				return err
			}

			p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := p.Close(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			reg, err := cmd.NewRegistry(logger, p, cmd.RegistryConfig{
				CredentialsSecret: command.String("credentials-secret"),
				CredentialsSalt:   command.String("credentials-salt"),
			})
			if err != nil {
				return err
			}

			execution, err := runWorkflow(ctx, logger, p, reg, wf, input, cmd.RetryPolicy(command), os.Stderr)
			if err != nil {
				return err
			}

			return printJSON(os.Stdout, execution)
		},
	}
}

// loadWorkflow reads a workflow definition. JSON files parse as YAML.
func loadWorkflow(path string) (*models.Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow: %w", err)
	}

	var wf models.Workflow

	err = yaml.Unmarshal(raw, &wf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow %s: %w", path, err)
	}

	return &wf, nil
}

func parseInput(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}

	var input map[string]any

	err := json.Unmarshal([]byte(raw), &input)
	if err != nil {
		return nil, fmt.Errorf("--input must be a JSON object: %w", err)
	}

	return input, nil
}

// runWorkflow saves wf with the usual validation and runs it to completion,
// writing one line per node status to statusOut.
func runWorkflow(
	ctx context.Context,
	logger *slog.Logger,
	p persistence.Persistence,
	reg *registry.Registry,
	wf *models.Workflow,
	input map[string]any,
	policy step.RetryPolicy,
	statusOut io.Writer,
) (*models.Execution, error) {
	if wf.UserID == "" {
		wf.UserID = "local"
	}

	saved, err := services.NewWorkflow(p, reg).Save(ctx, wf)
	if err != nil {
		return nil, err
	}

	recorder := status.NewRecorder(func(msg status.RecordedMessage) {
		fmt.Fprintf(statusOut, "%s\t%s\t%s\n", msg.Channel, msg.NodeID, msg.Status)
	})

	runner := workflow.NewRunner(p, reg, nil, recorder,
		workflow.WithLogger(logger),
		workflow.WithStepOptions(step.WithRetryPolicy(policy)),
	)

	return runner.Start(ctx, saved.ID, trigger.ManualContext(input))
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

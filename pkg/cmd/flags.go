package cmd

import (
	"time"

	"github.com/dukex/nodebase/pkg/step"
	cli "github.com/urfave/cli/v3"
)

// CommonFlags are shared by every long-running command.
func CommonFlags() []cli.Flag {
	defaults := step.DefaultRetryPolicy()

	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Persistence URL: a directory for file storage or postgres://...",
			Value:   "./data",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   EventBusGoChannel,
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "step-store-url",
			Usage:   "redis:// URL for step results; empty stores them with the executions",
			Sources: cli.EnvVars("STEP_STORE_URL"),
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
			Value:   defaults.MaxAttempts,
			Sources: cli.EnvVars("RETRY_MAX_ATTEMPTS"),
		},
		&cli.DurationFlag{
			Name:    "retry-initial-interval",
			Usage:   "Delay before the first step retry",
			Value:   defaults.InitialInterval,
			Sources: cli.EnvVars("RETRY_INITIAL_INTERVAL"),
		},
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

// RetryPolicy reads the retry flags.
func RetryPolicy(command *cli.Command) step.RetryPolicy {
	policy := step.DefaultRetryPolicy()
	policy.MaxAttempts = command.Int("retry-max-attempts")

	if interval := command.Duration("retry-initial-interval"); interval > 0 {
		policy.InitialInterval = interval
		policy.MaxInterval = max(policy.MaxInterval, interval)
	}

	return policy
}

// ShutdownTimeout bounds cleanup once a command is interrupted.
const ShutdownTimeout = 10 * time.Second

// Package main provides the nodebase worker, which executes workflows
// triggered through the event bus.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/nodebase/pkg/cmd"
	"github.com/dukex/nodebase/pkg/log"
	"github.com/dukex/nodebase/pkg/worker"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

const consumerGroup = "nodebase-workers"

func main() {
	flags := append(cmd.CommonFlags(),
		&cli.StringFlag{
			Name:    "worker-id",
			Aliases: []string{"id"},
			Usage:   "Custom worker ID (auto-generated if not provided)",
			Sources: cli.EnvVars("WORKER_ID"),
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Usage:   "Executions run at once",
			Value:   4,
			Sources: cli.EnvVars("WORKER_CONCURRENCY"),
		},
	)

	command := &cli.Command{
		Name:                  "nodebase-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers to execute workflows",
		Flags:                 flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("nodebase-worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing nodebase worker")

			if command.String("event-bus") == cmd.EventBusGoChannel {
				logger.WarnContext(ctx, "gochannel is in-process; use nodebase-api alone or switch to kafka")
			}

			rt, err := cmd.NewRuntime(ctx, command, "nodebase-worker", consumerGroup, logger)
			if err != nil {
				return err
			}

			defer func() {
				err := rt.Close(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close runtime", "error", err)
				}
			}()

			manager := worker.NewManager(workerID, rt.Runner(), rt.Transport.EventBus(command.Int("concurrency")), rt.Tracer, logger)

			err = manager.Start(ctx)
			if err != nil {
				return err
			}

			<-ctx.Done()
			logger.InfoContext(ctx, "Shutting down worker")

			return nil
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := command.Run(ctx, os.Args)
	if err != nil {
		stop()
		panic(err)
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/nodebase/pkg/cmd"
	"github.com/dukex/nodebase/pkg/log"
	"github.com/dukex/nodebase/pkg/status"
	"github.com/dukex/nodebase/pkg/worker"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	flags := append(cmd.CommonFlags(),
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.IntFlag{
			Name:    "worker-concurrency",
			Usage:   "Executions the embedded worker runs at once (gochannel only)",
			Value:   4,
			Sources: cli.EnvVars("WORKER_CONCURRENCY"),
		},
	)

	command := &cli.Command{
		Name:                  "nodebase-api",
		Usage:                 "Trigger workflows and follow their executions",
		EnableShellCompletion: true,
		Flags:                 flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing nodebase API")

			// Every API replica tracks status on its own, so each gets its own group.
			rt, err := cmd.NewRuntime(ctx, command, "nodebase-api", "nodebase-api-"+uuid.New().String()[:8], logger)
			if err != nil {
				return err
			}

			defer func() {
				err := rt.Close(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close runtime", "error", err)
				}
			}()

			eventBus := rt.Transport.EventBus(command.Int("worker-concurrency"))

			if command.String("event-bus") == cmd.EventBusGoChannel {
				manager := worker.NewManager("embedded", rt.Runner(), eventBus, rt.Tracer, logger)

				err = manager.Start(ctx)
				if err != nil {
					return err
				}
			}

			tracker := status.NewTracker(logger)

			err = tracker.Follow(ctx, rt.Transport.StatusBroker(), status.Channels()...)
			if err != nil {
				return err
			}

			api := NewAPI(logger, rt.Persistence, rt.Registry, eventBus, tracker, rt.Metrics)

			return api.Start(ctx, command.Int("port"))
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

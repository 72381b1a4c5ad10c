// Package main provides the nodebase command line: local workflow runs and
// credential management.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "nodebase",
		Usage:                 "Run workflows locally and manage credentials",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewRunCommand(),
			NewCredentialsCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := command.Run(ctx, os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

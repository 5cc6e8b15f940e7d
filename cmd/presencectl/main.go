// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// presencectl administers a presence service through its admin
// socket and works with exported event archives.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/presence/cmd/presencectl/cli"
	"github.com/bureau-foundation/presence/lib/config"
	"github.com/bureau-foundation/presence/lib/service"
	"github.com/bureau-foundation/presence/lib/version"
)

// socketEnv overrides the admin socket path.
const socketEnv = "PRESENCE_SOCKET"

// callTimeout bounds one socket round trip.
const callTimeout = 30 * time.Second

// stdout is where command results go. Tests replace it.
var stdout io.Writer = os.Stdout

func main() {
	if err := root().Execute(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func root() *cli.Command {
	return &cli.Command{
		Name:        "presencectl",
		Description: "Administer a presence service over its admin socket, and export or verify event archives.",
		Subcommands: []*cli.Command{
			employeeCommand(),
			statusCommand(),
			reportCommand(),
			tokenCommand(),
			eventsCommand(),
			keygenCommand(),
			infoCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Fprintf(stdout, "presencectl %s\n", version.Full())
					return nil
				},
			},
		},
	}
}

// connection holds the --socket flag shared by every command that
// talks to the service.
type connection struct {
	socketPath string
}

func (c *connection) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.socketPath, "socket", "", "admin socket path (default: $"+socketEnv+", else paths.socket from $"+config.ConfigEnv+")")
}

// resolve picks the socket path: flag, environment, config file, then
// the built-in default.
func (c *connection) resolve() (string, error) {
	if c.socketPath != "" {
		return c.socketPath, nil
	}
	if path := os.Getenv(socketEnv); path != "" {
		return path, nil
	}
	if os.Getenv(config.ConfigEnv) != "" {
		cfg, err := config.Load()
		if err != nil {
			return "", fmt.Errorf("resolving admin socket: %w", err)
		}
		return cfg.Paths.Socket, nil
	}
	return config.Default().Paths.Socket, nil
}

// call runs one action against the service.
func (c *connection) call(action string, fields map[string]any, result any) error {
	socketPath, err := c.resolve()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return service.NewServiceClient(socketPath).Call(ctx, action, fields, result)
}

// requireArgs checks the positional argument count.
func requireArgs(args []string, count int, usage string) error {
	if len(args) != count {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

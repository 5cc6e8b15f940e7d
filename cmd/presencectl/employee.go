// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/presence/cmd/presencectl/cli"
	"github.com/bureau-foundation/presence/lib/presence"
)

func employeeCommand() *cli.Command {
	return &cli.Command{
		Name:    "employee",
		Summary: "Create and deactivate employees",
		Subcommands: []*cli.Command{
			employeeCreateCommand(),
			employeeDeactivateCommand(),
		},
	}
}

func employeeCreateCommand() *cli.Command {
	var (
		conn       connection
		output     cli.JSONOutput
		company    string
		department string
	)
	return &cli.Command{
		Name:    "create",
		Summary: "Provision an employee and print their activation key",
		Usage:   "presencectl employee create --company <id> [--department <name>] <name>",
		Examples: []cli.Example{
			{
				Description: "Invite a new engineer",
				Command:     `presencectl employee create --company acme --department Engineering "Ada Lovelace"`,
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("create", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			output.AddFlag(flagSet)
			flagSet.StringVar(&company, "company", "", "company id (required)")
			flagSet.StringVar(&department, "department", "", "department shown on the dashboard")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: presencectl employee create --company <id> <name>")
			}
			if company == "" {
				return fmt.Errorf("--company is required")
			}
			var employee presence.Employee
			if err := conn.call("create-employee", map[string]any{
				"company":    company,
				"name":       strings.Join(args, " "),
				"department": department,
			}, &employee); err != nil {
				return err
			}
			if done, err := output.EmitJSON(stdout, employee); done {
				return err
			}
			fmt.Fprintf(stdout, "Created %s (%s)\n", employee.Name, employee.ID)
			fmt.Fprintf(stdout, "Activation key: %s\n", employee.ActivationKey)
			return nil
		},
	}
}

func employeeDeactivateCommand() *cli.Command {
	var (
		conn    connection
		output  cli.JSONOutput
		company string
	)
	return &cli.Command{
		Name:        "deactivate",
		Summary:     "Retire an employee's activation key",
		Description: "Retire an employee's activation key. The bound agent's heartbeats are refused from then on and the key cannot be activated again.",
		Usage:       "presencectl employee deactivate --company <id> <employee-id>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("deactivate", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			output.AddFlag(flagSet)
			flagSet.StringVar(&company, "company", "", "company id (required)")
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireArgs(args, 1, "presencectl employee deactivate --company <id> <employee-id>"); err != nil {
				return err
			}
			if company == "" {
				return fmt.Errorf("--company is required")
			}
			var employee presence.Employee
			if err := conn.call("deactivate-employee", map[string]any{
				"company":  company,
				"employee": args[0],
			}, &employee); err != nil {
				return err
			}
			if done, err := output.EmitJSON(stdout, employee); done {
				return err
			}
			fmt.Fprintf(stdout, "Deactivated %s (%s)\n", employee.Name, employee.ID)
			return nil
		},
	}
}

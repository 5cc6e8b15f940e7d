// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/presence/cmd/presencectl/cli"
	"github.com/bureau-foundation/presence/lib/presence"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:    "status",
		Summary: "Show derived statuses",
		Subcommands: []*cli.Command{
			statusListCommand(),
			statusGetCommand(),
			statusSummaryCommand(),
		},
	}
}

func statusListCommand() *cli.Command {
	var (
		conn    connection
		output  cli.JSONOutput
		company string
	)
	return &cli.Command{
		Name:    "list",
		Summary: "List every employee of a company with their status",
		Usage:   "presencectl status list --company <id>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			output.AddFlag(flagSet)
			flagSet.StringVar(&company, "company", "", "company id (required)")
			return flagSet
		},
		Run: func(args []string) error {
			if company == "" {
				return fmt.Errorf("--company is required")
			}
			var statuses []presence.EmployeeStatus
			if err := conn.call("list-statuses", map[string]any{"company": company}, &statuses); err != nil {
				return err
			}
			if done, err := output.EmitJSON(stdout, statuses); done {
				return err
			}
			writeStatusTable(stdout, statuses, time.Now(), cli.StdoutIsTerminal())
			return nil
		},
	}
}

// writeStatusTable prints one row per employee. The status column is
// last so that colour codes do not upset tabwriter's alignment.
func writeStatusTable(w io.Writer, statuses []presence.EmployeeStatus, now time.Time, color bool) {
	if len(statuses) == 0 {
		fmt.Fprintln(w, "No employees.")
		return
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDEPARTMENT\tLAST SEEN\tSTATUS")
	for _, status := range statuses {
		employee := status.Employee
		lastSeen := "never"
		if status.LastEvent != nil {
			lastSeen = formatAge(now.Sub(status.LastEvent.ReceivedAt)) + " ago"
		}
		state := cli.StatusStyle(status.Status, color)
		if employee.Deactivated() {
			state += " (deactivated)"
		} else if !employee.Bound() {
			state += " (not activated)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			employee.ID, employee.Name, dash(employee.Department), lastSeen, state)
	}
	tw.Flush()
}

func statusGetCommand() *cli.Command {
	var (
		conn    connection
		output  cli.JSONOutput
		company string
	)
	return &cli.Command{
		Name:    "get",
		Summary: "Show one employee's status",
		Usage:   "presencectl status get --company <id> <employee-id>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("get", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			output.AddFlag(flagSet)
			flagSet.StringVar(&company, "company", "", "company id (required)")
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireArgs(args, 1, "presencectl status get --company <id> <employee-id>"); err != nil {
				return err
			}
			if company == "" {
				return fmt.Errorf("--company is required")
			}
			var status presence.EmployeeStatus
			if err := conn.call("get-status", map[string]any{"company": company, "employee": args[0]}, &status); err != nil {
				return err
			}
			if done, err := output.EmitJSON(stdout, status); done {
				return err
			}
			writeStatusTable(stdout, []presence.EmployeeStatus{status}, time.Now(), cli.StdoutIsTerminal())
			return nil
		},
	}
}

func statusSummaryCommand() *cli.Command {
	var (
		conn    connection
		output  cli.JSONOutput
		company string
	)
	return &cli.Command{
		Name:    "summary",
		Summary: "Count a company's employees by status",
		Usage:   "presencectl status summary --company <id>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("summary", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			output.AddFlag(flagSet)
			flagSet.StringVar(&company, "company", "", "company id (required)")
			return flagSet
		},
		Run: func(args []string) error {
			if company == "" {
				return fmt.Errorf("--company is required")
			}
			var summary presence.Summary
			if err := conn.call("summary", map[string]any{"company": company}, &summary); err != nil {
				return err
			}
			if done, err := output.EmitJSON(stdout, summary); done {
				return err
			}
			color := cli.StdoutIsTerminal()
			fmt.Fprintf(stdout, "%s: %d %s, %d %s, %d %s (%d total)\n",
				summary.CompanyID,
				summary.Present, cli.StatusStyle(presence.StatusPresent, color),
				summary.Away, cli.StatusStyle(presence.StatusAway, color),
				summary.Offline, cli.StatusStyle(presence.StatusOffline, color),
				summary.Total)
			return nil
		},
	}
}

// formatAge renders a duration at a readable precision.
func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "0s"
	case d < time.Hour:
		return d.Round(time.Second).String()
	case d < 48*time.Hour:
		return d.Round(time.Minute).String()
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/presence/cmd/presencectl/cli"
	"github.com/bureau-foundation/presence/lib/presence"
)

func reportCommand() *cli.Command {
	var (
		conn    connection
		output  cli.JSONOutput
		company string
		from    string
		to      string
		window  time.Duration
	)
	return &cli.Command{
		Name:    "report",
		Summary: "Show time spent present, away and offline",
		Description: "Replay an employee's events over a window and total the time spent in each status.\n" +
			"--from and --to take RFC 3339 times; without --from the window is --window long and ends at --to (default now).",
		Usage: "presencectl report --company <id> [--from <time>] [--to <time>] <employee-id>",
		Examples: []cli.Example{
			{Description: "Yesterday's working day", Command: "presencectl report --company acme --from 2026-03-02T09:00:00Z --to 2026-03-02T17:00:00Z emp-1"},
			{Description: "The last eight hours", Command: "presencectl report --company acme --window 8h emp-1"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("report", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			output.AddFlag(flagSet)
			flagSet.StringVar(&company, "company", "", "company id (required)")
			flagSet.StringVar(&from, "from", "", "window start (RFC 3339)")
			flagSet.StringVar(&to, "to", "", "window end (RFC 3339, default now)")
			flagSet.DurationVar(&window, "window", 24*time.Hour, "window length when --from is not given")
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireArgs(args, 1, "presencectl report --company <id> <employee-id>"); err != nil {
				return err
			}
			if company == "" {
				return fmt.Errorf("--company is required")
			}
			end, err := parseTimeFlag("--to", to, time.Now())
			if err != nil {
				return err
			}
			start, err := parseTimeFlag("--from", from, end.Add(-window))
			if err != nil {
				return err
			}

			var report presence.Report
			if err := conn.call("report", map[string]any{
				"company":  company,
				"employee": args[0],
				"from":     start,
				"to":       end,
			}, &report); err != nil {
				return err
			}
			if done, err := output.EmitJSON(stdout, report); done {
				return err
			}
			writeReport(stdout, report, cli.StdoutIsTerminal())
			return nil
		},
	}
}

func writeReport(w io.Writer, report presence.Report, color bool) {
	fmt.Fprintf(w, "Employee %s, %s to %s\n\n",
		report.EmployeeID, report.From.Format(time.RFC3339), report.To.Format(time.RFC3339))
	total := report.To.Sub(report.From)
	for _, row := range []struct {
		status   presence.Status
		duration time.Duration
	}{
		{presence.StatusPresent, report.Present},
		{presence.StatusAway, report.Away},
		{presence.StatusOffline, report.Offline},
	} {
		percent := 0.0
		if total > 0 {
			percent = 100 * float64(row.duration) / float64(total)
		}
		// Pad before styling so the colour codes do not count.
		label := cli.StatusStyle(row.status, color) + spaces(8-len(row.status))
		fmt.Fprintf(w, "  %s %10s  %5.1f%%\n", label, row.duration.Round(time.Second), percent)
	}
	if len(report.Transitions) > 0 {
		fmt.Fprintf(w, "\nTransitions:\n")
		for _, transition := range report.Transitions {
			fmt.Fprintf(w, "  %s  %s -> %s\n",
				transition.At.Format(time.RFC3339),
				cli.StatusStyle(transition.From, color),
				cli.StatusStyle(transition.To, color))
		}
	}
}

func spaces(count int) string {
	if count <= 0 {
		return ""
	}
	return fmt.Sprintf("%*s", count, "")
}

// parseTimeFlag parses an RFC 3339 flag value, or returns fallback
// when it is empty.
func parseTimeFlag(name, value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %q is not an RFC 3339 time", name, value)
	}
	return parsed, nil
}

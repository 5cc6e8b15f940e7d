// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/presence/cmd/presencectl/cli"
	"github.com/bureau-foundation/presence/lib/eventarchive"
	"github.com/bureau-foundation/presence/lib/presence"
)

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:    "events",
		Summary: "Export and verify event archives",
		Description: "Event archives are self-describing files holding a company's raw heartbeat\n" +
			"and check-in events, compressed and optionally encrypted to age recipients.\n" +
			"A trailing digest lets verify detect truncation and tampering.",
		Subcommands: []*cli.Command{
			eventsExportCommand(),
			eventsVerifyCommand(),
		},
	}
}

func eventsExportCommand() *cli.Command {
	var (
		conn        connection
		company     string
		employee    string
		since       string
		until       string
		compression string
		recipients  []string
		outputPath  string
	)
	return &cli.Command{
		Name:    "export",
		Summary: "Write a company's events to an archive file",
		Usage:   "presencectl events export --company <id> --output <file> [flags]",
		Examples: []cli.Example{
			{
				Description: "Export March, encrypted to the auditor's key",
				Command:     "presencectl events export --company acme --since 2026-03-01T00:00:00Z --until 2026-04-01T00:00:00Z --recipient age1... -o acme-march.pev",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("export", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringVar(&company, "company", "", "company id (required)")
			flagSet.StringVar(&employee, "employee", "", "restrict to one employee")
			flagSet.StringVar(&since, "since", "", "earliest receipt time (RFC 3339)")
			flagSet.StringVar(&until, "until", "", "latest receipt time (RFC 3339)")
			flagSet.StringVar(&compression, "compression", "zstd", "body compression: none, zstd, or lz4")
			flagSet.StringArrayVar(&recipients, "recipient", nil, "age recipient to encrypt to (repeatable)")
			flagSet.StringVarP(&outputPath, "output", "o", "", "archive path (required)")
			return flagSet
		},
		Run: func(args []string) error {
			if company == "" {
				return fmt.Errorf("--company is required")
			}
			if outputPath == "" {
				return fmt.Errorf("--output is required")
			}
			codecName, err := eventarchive.ParseCompression(compression)
			if err != nil {
				return err
			}
			from, err := parseTimeFlag("--since", since, time.Time{})
			if err != nil {
				return err
			}
			to, err := parseTimeFlag("--until", until, time.Time{})
			if err != nil {
				return err
			}

			fields := map[string]any{"company": company}
			if employee != "" {
				fields["employee"] = employee
			}
			if !from.IsZero() {
				fields["since"] = from
			}
			if !to.IsZero() {
				fields["until"] = to
			}
			var events []presence.Event
			if err := conn.call("events", fields, &events); err != nil {
				return err
			}

			trailer, err := writeArchive(outputPath, eventarchive.Header{
				CompanyID: company,
				From:      from,
				To:        to,
				CreatedAt: time.Now().UTC(),
			}, eventarchive.Options{
				Compression: codecName,
				Recipients:  recipients,
			}, events)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Wrote %d events to %s\n", trailer.Count, outputPath)
			fmt.Fprintf(stdout, "Digest: %s\n", hex.EncodeToString(trailer.Digest))
			return nil
		},
	}
}

// writeArchive writes events to a new file at path. A partial file is
// removed on failure.
func writeArchive(path string, header eventarchive.Header, options eventarchive.Options, events []presence.Event) (eventarchive.Trailer, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return eventarchive.Trailer{}, fmt.Errorf("creating archive: %w", err)
	}
	trailer, err := func() (eventarchive.Trailer, error) {
		buffered := bufio.NewWriter(file)
		writer, err := eventarchive.NewWriter(buffered, header, options)
		if err != nil {
			return eventarchive.Trailer{}, err
		}
		for _, event := range events {
			if err := writer.Write(event); err != nil {
				return eventarchive.Trailer{}, err
			}
		}
		trailer, err := writer.Close()
		if err != nil {
			return eventarchive.Trailer{}, err
		}
		return trailer, buffered.Flush()
	}()
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing archive: %w", closeErr)
	}
	if err != nil {
		os.Remove(path)
		return eventarchive.Trailer{}, err
	}
	return trailer, nil
}

func eventsVerifyCommand() *cli.Command {
	var (
		output       cli.JSONOutput
		identityPath string
	)
	return &cli.Command{
		Name:        "verify",
		Summary:     "Check an archive's digest and print its contents",
		Description: "Read every event in an archive and check the trailing digest. Exits 1 if the archive is truncated or the digest does not match.",
		Usage:       "presencectl events verify [--identity <key-file>] <archive>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			output.AddFlag(flagSet)
			flagSet.StringVarP(&identityPath, "identity", "i", "", "age identity file for encrypted archives")
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireArgs(args, 1, "presencectl events verify [--identity <key-file>] <archive>"); err != nil {
				return err
			}
			summary, err := verifyArchive(args[0], identityPath)
			if summary == nil {
				return err
			}
			if done, emitErr := output.EmitJSON(stdout, summary); done {
				if emitErr != nil {
					return emitErr
				}
			} else {
				writeArchiveSummary(stdout, summary)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// archiveSummary is what verify reports about an archive.
type archiveSummary struct {
	Header   eventarchive.Header `json:"header"`
	Events   []presence.Event    `json:"events"`
	Verified bool                `json:"verified"`
	Digest   string              `json:"digest,omitempty"`
}

// verifyArchive reads the archive at path. It returns a nil summary
// only when the header itself cannot be read. A non-nil summary with
// an error means the body failed verification after some events.
func verifyArchive(path, identityPath string) (*archiveSummary, error) {
	var identityReader io.Reader
	if identityPath != "" {
		identityFile, err := os.Open(identityPath)
		if err != nil {
			return nil, fmt.Errorf("opening identity file: %w", err)
		}
		defer identityFile.Close()
		identityReader = identityFile
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	var reader *eventarchive.Reader
	if identityReader != nil {
		identities, err := eventarchive.ParseIdentities(identityReader)
		if err != nil {
			return nil, err
		}
		reader, err = eventarchive.NewReader(bufio.NewReader(file), identities...)
		if err != nil {
			return nil, err
		}
	} else {
		reader, err = eventarchive.NewReader(bufio.NewReader(file))
		if err != nil {
			return nil, err
		}
	}
	defer reader.Close()

	summary := &archiveSummary{Header: reader.Header(), Events: []presence.Event{}}
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, err
		}
		summary.Events = append(summary.Events, event)
	}
	trailer, _ := reader.Trailer()
	summary.Verified = true
	summary.Digest = hex.EncodeToString(trailer.Digest)
	return summary, nil
}

func writeArchiveSummary(w io.Writer, summary *archiveSummary) {
	header := summary.Header
	fmt.Fprintf(w, "Company:     %s\n", header.CompanyID)
	fmt.Fprintf(w, "Window:      %s to %s\n", formatBound(header.From), formatBound(header.To))
	fmt.Fprintf(w, "Created:     %s\n", header.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Compression: %s\n", header.Compression)
	fmt.Fprintf(w, "Encrypted:   %t\n", header.Encrypted)
	fmt.Fprintf(w, "Events:      %d\n", len(summary.Events))
	if summary.Verified {
		fmt.Fprintf(w, "Digest:      %s (verified)\n", summary.Digest)
	} else {
		fmt.Fprintf(w, "Digest:      NOT VERIFIED\n")
	}
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "(open)"
	}
	return t.Format(time.RFC3339)
}

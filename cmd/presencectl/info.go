// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/presence/cmd/presencectl/cli"
)

// serviceInfo mirrors the service's "status" action response.
type serviceInfo struct {
	UptimeSeconds  float64 `cbor:"uptime_seconds" json:"uptime_seconds"`
	Version        string  `cbor:"version" json:"version"`
	AwayTimeout    string  `cbor:"away_timeout" json:"away_timeout"`
	OfflineTimeout string  `cbor:"offline_timeout" json:"offline_timeout"`
	Published      uint64  `cbor:"published" json:"published"`
	Dropped        uint64  `cbor:"dropped" json:"dropped"`
	RevokedTokens  int     `cbor:"revoked_tokens" json:"revoked_tokens"`

	Companies []string `cbor:"-" json:"companies"`
}

func infoCommand() *cli.Command {
	var (
		conn   connection
		output cli.JSONOutput
	)
	return &cli.Command{
		Name:    "info",
		Summary: "Show the running service's version, timeouts and tenants",
		Usage:   "presencectl info",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("info", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			output.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			var info serviceInfo
			if err := conn.call("status", nil, &info); err != nil {
				return err
			}
			if err := conn.call("companies", nil, &info.Companies); err != nil {
				return err
			}
			if done, err := output.EmitJSON(stdout, info); done {
				return err
			}
			uptime := time.Duration(info.UptimeSeconds * float64(time.Second))
			fmt.Fprintf(stdout, "Version:         %s\n", info.Version)
			fmt.Fprintf(stdout, "Uptime:          %s\n", formatAge(uptime))
			fmt.Fprintf(stdout, "Away after:      %s\n", info.AwayTimeout)
			fmt.Fprintf(stdout, "Offline after:   %s\n", info.OfflineTimeout)
			fmt.Fprintf(stdout, "Status changes:  %d published, %d dropped\n", info.Published, info.Dropped)
			fmt.Fprintf(stdout, "Revoked tokens:  %d\n", info.RevokedTokens)
			companies := "(none)"
			if len(info.Companies) > 0 {
				companies = strings.Join(info.Companies, ", ")
			}
			fmt.Fprintf(stdout, "Companies:       %s\n", companies)
			return nil
		},
	}
}

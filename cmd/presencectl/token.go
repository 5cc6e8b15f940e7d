// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/presence/cmd/presencectl/cli"
)

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:    "token",
		Summary: "Mint and revoke dashboard bearer tokens",
		Subcommands: []*cli.Command{
			tokenMintCommand(),
			tokenRevokeCommand(),
		},
	}
}

// mintedToken mirrors the service's mint-token response.
type mintedToken struct {
	Token     string    `cbor:"token" json:"token"`
	ID        string    `cbor:"id" json:"id"`
	ExpiresAt time.Time `cbor:"expires_at" json:"expires_at"`
}

func tokenMintCommand() *cli.Command {
	var (
		conn       connection
		output     cli.JSONOutput
		subject    string
		company    string
		superAdmin bool
		ttl        time.Duration
	)
	return &cli.Command{
		Name:    "mint",
		Summary: "Sign a supervisor token for the dashboard API",
		Usage:   "presencectl token mint --subject <email> (--company <id> | --super-admin)",
		Examples: []cli.Example{
			{Description: "A token for one company's supervisor", Command: "presencectl token mint --subject lead@acme.example --company acme"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("mint", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			output.AddFlag(flagSet)
			flagSet.StringVar(&subject, "subject", "", "who the token is for (required)")
			flagSet.StringVar(&company, "company", "", "company the token may read")
			flagSet.BoolVar(&superAdmin, "super-admin", false, "allow reading any company")
			flagSet.DurationVar(&ttl, "ttl", 0, "lifetime (default: tokens.ttl from the service config)")
			return flagSet
		},
		Run: func(args []string) error {
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			fields := map[string]any{
				"subject":     subject,
				"company":     company,
				"super_admin": superAdmin,
			}
			if ttl > 0 {
				fields["ttl"] = ttl.String()
			}
			var minted mintedToken
			if err := conn.call("mint-token", fields, &minted); err != nil {
				return err
			}
			if done, err := output.EmitJSON(stdout, minted); done {
				return err
			}
			fmt.Fprintln(stdout, minted.Token)
			fmt.Fprintf(os.Stderr, "token %s expires %s\n", minted.ID, minted.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func tokenRevokeCommand() *cli.Command {
	var conn connection
	return &cli.Command{
		Name:        "revoke",
		Summary:     "Revoke a supervisor token before it expires",
		Description: "Revoke a supervisor token before it expires. Revocations live in the service's memory and are lost on restart; keep token lifetimes short.",
		Usage:       "presencectl token revoke <token>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("revoke", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireArgs(args, 1, "presencectl token revoke <token>"); err != nil {
				return err
			}
			var revoked struct {
				ID string `cbor:"id"`
			}
			if err := conn.call("revoke-token", map[string]any{"token": strings.TrimSpace(args[0])}, &revoked); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Revoked token %s\n", revoked.ID)
			return nil
		},
	}
}

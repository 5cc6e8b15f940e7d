// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/presence/cmd/presencectl/cli"
	"github.com/bureau-foundation/presence/lib/eventarchive"
)

func keygenCommand() *cli.Command {
	var outputPath string
	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an age key pair for encrypted archives",
		Description: "Generate an X25519 age identity. The secret key goes to --output (mode 0600) or\n" +
			"stdout; the public recipient is printed for use with events export --recipient.",
		Usage: "presencectl keygen [-o <key-file>]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flagSet.StringVarP(&outputPath, "output", "o", "", "write the secret key here instead of stdout")
			return flagSet
		},
		Run: func(args []string) error {
			secretKey, recipient, err := eventarchive.GenerateIdentity()
			if err != nil {
				return err
			}
			content := fmt.Sprintf("# public key: %s\n%s\n", recipient, secretKey)
			if outputPath == "" {
				fmt.Fprint(stdout, content)
				return nil
			}
			file, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
			if err != nil {
				return fmt.Errorf("creating key file: %w", err)
			}
			if _, err := file.WriteString(content); err != nil {
				file.Close()
				return fmt.Errorf("writing key file: %w", err)
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("writing key file: %w", err)
			}
			fmt.Fprintf(stdout, "Public key: %s\n", recipient)
			return nil
		},
	}
}

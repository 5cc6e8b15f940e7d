// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework behind presencectl.
//
// A [Command] is a named node with optional [Command.Subcommands], a
// [pflag.FlagSet] factory, and a Run function. [Command.Execute]
// routes arguments down the tree, parses flags, and prints structured
// help. Unknown subcommands and flags get a "did you mean" suggestion
// when a known name is within edit distance 3.
//
// Output helpers: [JSONOutput] adds a --json flag to a command,
// [StatusStyle] colours derived statuses with lipgloss when stdout is
// a terminal, and [NewCommandLogger] picks a text or JSON slog handler
// depending on whether stderr is a terminal.
package cli

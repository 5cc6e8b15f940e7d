// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"io"
	"os"
	"reflect"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/presence/lib/presence"
)

// JSONOutput adds --json to a command. Embed it in the command's
// options and call AddFlag from the Flags factory.
//
//	if done, err := options.EmitJSON(os.Stdout, statuses); done {
//	    return err
//	}
type JSONOutput struct {
	OutputJSON bool
}

// AddFlag registers --json on flagSet.
func (j *JSONOutput) AddFlag(flagSet *pflag.FlagSet) {
	flagSet.BoolVar(&j.OutputJSON, "json", false, "output as JSON")
}

// EmitJSON writes result as indented JSON to w if --json is set.
// It returns (false, nil) when the caller should print text instead.
// Nil slices are written as [].
func (j *JSONOutput) EmitJSON(w io.Writer, result any) (bool, error) {
	if !j.OutputJSON {
		return false, nil
	}
	return true, WriteJSON(w, normalizeNilSlice(result))
}

// WriteJSON writes value as indented JSON.
func WriteJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func normalizeNilSlice(value any) any {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Slice && v.IsNil() {
		return reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	return value
}

// StdoutIsTerminal reports whether colour output makes sense.
func StdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

var statusColors = map[presence.Status]lipgloss.Color{
	presence.StatusPresent: lipgloss.Color("2"),
	presence.StatusAway:    lipgloss.Color("3"),
	presence.StatusOffline: lipgloss.Color("8"),
}

// StatusStyle renders a derived status, coloured when color is true.
func StatusStyle(status presence.Status, color bool) string {
	text := string(status)
	if !color {
		return text
	}
	foreground, ok := statusColors[status]
	if !ok {
		return text
	}
	return lipgloss.NewStyle().Foreground(foreground).Bold(status == presence.StatusPresent).Render(text)
}

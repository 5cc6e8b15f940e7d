// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads configuration for the presence service.
//
// Configuration comes from a single file named by either the
// PRESENCE_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no file search. YAML is
// the native format; files ending in .json or .jsonc are accepted with
// comments and trailing commas stripped.
//
// The file may carry environment sections (development, staging,
// production) that override base values when [Config].Environment
// matches. Production without an explicit section gets a shorter
// supervisor token lifetime.
//
// Path fields support ${HOME}, ${PRESENCE_STATE} and ${VAR:-default}
// expansion. No other environment variable overrides a value.
//
// Durations are Go duration strings ("10s", "1h"). [Config.Validate]
// parses them and reports every problem at once.
package config

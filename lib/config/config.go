// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/presencestore"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// ConfigEnv names the environment variable read by Load.
const ConfigEnv = "PRESENCE_CONFIG"

// Config is the presence service configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Paths    PathsConfig          `yaml:"paths"`
	Store    presencestore.Config `yaml:"store"`
	HTTP     HTTPConfig           `yaml:"http"`
	Presence PresenceConfig       `yaml:"presence"`
	Tokens   TokensConfig         `yaml:"tokens"`
	Notify   NotifyConfig         `yaml:"notify"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment. Empty strings leave the base value alone.
type ConfigOverrides struct {
	Paths    *PathsConfig          `yaml:"paths,omitempty"`
	Store    *presencestore.Config `yaml:"store,omitempty"`
	HTTP     *HTTPConfig           `yaml:"http,omitempty"`
	Presence *PresenceConfig       `yaml:"presence,omitempty"`
	Tokens   *TokensConfig         `yaml:"tokens,omitempty"`
	Notify   *NotifyConfig         `yaml:"notify,omitempty"`
}

// PathsConfig configures on-disk locations.
type PathsConfig struct {
	// State holds the SQLite database (by default) and the supervisor
	// signing keypair.
	State string `yaml:"state"`

	// Socket is the admin Unix socket used by presencectl.
	Socket string `yaml:"socket"`
}

// HTTPConfig configures the agent and dashboard listener.
type HTTPConfig struct {
	Listen          string `yaml:"listen"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// PresenceConfig sets the derivation windows.
type PresenceConfig struct {
	AwayTimeout    string `yaml:"away_timeout"`
	OfflineTimeout string `yaml:"offline_timeout"`
}

// TokensConfig configures supervisor bearer tokens.
type TokensConfig struct {
	TTL string `yaml:"ttl"`
}

// NotifyConfig configures the status sweeper and Slack notifier.
type NotifyConfig struct {
	Enabled bool `yaml:"enabled"`

	// SlackWebhook is the fallback webhook for companies without an
	// entry in CompanyWebhooks.
	SlackWebhook    string            `yaml:"slack_webhook"`
	CompanyWebhooks map[string]string `yaml:"company_webhooks,omitempty"`

	// On lists derived statuses that produce a message.
	On []string `yaml:"on,omitempty"`

	SweepInterval string `yaml:"sweep_interval"`
}

// Default returns the base configuration that a file is merged into.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	state := filepath.Join(homeDir, ".local", "state", "presence")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			State:  state,
			Socket: filepath.Join(state, "presence.sock"),
		},
		Store: presencestore.Config{
			Backend: presencestore.BackendSQLite,
			Path:    "${PRESENCE_STATE}/presence.db",
		},
		HTTP: HTTPConfig{
			Listen:          "127.0.0.1:8420",
			ShutdownTimeout: "10s",
		},
		Presence: PresenceConfig{
			AwayTimeout:    presence.DefaultAwayTimeout.String(),
			OfflineTimeout: presence.DefaultOfflineTimeout.String(),
		},
		Tokens: TokensConfig{
			TTL: "12h",
		},
		Notify: NotifyConfig{
			SweepInterval: "2s",
		},
	}
}

// Load loads configuration from the PRESENCE_CONFIG environment
// variable. There is no fallback when it is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(ConfigEnv)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your presence.yaml config file, or use --config flag", ConfigEnv)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, applies the environment
// section and expands path variables. It does not validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML, so one set of struct tags serves both.
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{
				Tokens: &TokensConfig{TTL: "1h"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		setString(&c.Paths.State, overrides.Paths.State)
		setString(&c.Paths.Socket, overrides.Paths.Socket)
	}
	if overrides.Store != nil {
		setString(&c.Store.Backend, overrides.Store.Backend)
		setString(&c.Store.Path, overrides.Store.Path)
		setString(&c.Store.DSN, overrides.Store.DSN)
		if overrides.Store.PoolSize != 0 {
			c.Store.PoolSize = overrides.Store.PoolSize
		}
	}
	if overrides.HTTP != nil {
		setString(&c.HTTP.Listen, overrides.HTTP.Listen)
		setString(&c.HTTP.ShutdownTimeout, overrides.HTTP.ShutdownTimeout)
	}
	if overrides.Presence != nil {
		setString(&c.Presence.AwayTimeout, overrides.Presence.AwayTimeout)
		setString(&c.Presence.OfflineTimeout, overrides.Presence.OfflineTimeout)
	}
	if overrides.Tokens != nil {
		setString(&c.Tokens.TTL, overrides.Tokens.TTL)
	}
	if overrides.Notify != nil {
		// Enabled is a bool, so an override section always applies it.
		c.Notify.Enabled = overrides.Notify.Enabled
		setString(&c.Notify.SlackWebhook, overrides.Notify.SlackWebhook)
		setString(&c.Notify.SweepInterval, overrides.Notify.SweepInterval)
		if len(overrides.Notify.On) > 0 {
			c.Notify.On = overrides.Notify.On
		}
		for company, webhook := range overrides.Notify.CompanyWebhooks {
			if c.Notify.CompanyWebhooks == nil {
				c.Notify.CompanyWebhooks = make(map[string]string)
			}
			c.Notify.CompanyWebhooks[company] = webhook
		}
	}
}

func setString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Paths.State = expandVars(c.Paths.State, vars)
	vars["PRESENCE_STATE"] = c.Paths.State

	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
	c.Store.Path = expandVars(c.Store.Path, vars)
	c.Store.DSN = expandVars(c.Store.DSN, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}, preferring vars over
// the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Paths.State == "" {
		errs = append(errs, fmt.Errorf("paths.state is required"))
	}
	if c.Paths.Socket == "" {
		errs = append(errs, fmt.Errorf("paths.socket is required"))
	}
	if err := c.Store.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.HTTP.Listen == "" {
		errs = append(errs, fmt.Errorf("http.listen is required"))
	}
	if _, err := parseDuration("http.shutdown_timeout", c.HTTP.ShutdownTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseDuration("tokens.ttl", c.Tokens.TTL); err != nil {
		errs = append(errs, err)
	}
	if c.Notify.Enabled {
		if _, err := parseDuration("notify.sweep_interval", c.Notify.SweepInterval); err != nil {
			errs = append(errs, err)
		}
		if _, err := c.NotifyStatuses(); err != nil {
			errs = append(errs, err)
		}
		if c.Notify.SlackWebhook == "" && len(c.Notify.CompanyWebhooks) == 0 {
			errs = append(errs, fmt.Errorf("notify.enabled requires notify.slack_webhook or notify.company_webhooks"))
		}
	}

	return errors.Join(errs...)
}

// Policy returns the derivation windows.
func (c *Config) Policy() (presence.Policy, error) {
	away, awayErr := parseDuration("presence.away_timeout", c.Presence.AwayTimeout)
	offline, offlineErr := parseDuration("presence.offline_timeout", c.Presence.OfflineTimeout)
	if err := errors.Join(awayErr, offlineErr); err != nil {
		return presence.Policy{}, err
	}
	policy := presence.Policy{AwayTimeout: away, OfflineTimeout: offline}
	if err := policy.Validate(); err != nil {
		return presence.Policy{}, fmt.Errorf("presence: %w", err)
	}
	return policy, nil
}

// ShutdownTimeout returns http.shutdown_timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	duration, _ := parseDuration("http.shutdown_timeout", c.HTTP.ShutdownTimeout)
	return duration
}

// TokenTTL returns tokens.ttl.
func (c *Config) TokenTTL() time.Duration {
	duration, _ := parseDuration("tokens.ttl", c.Tokens.TTL)
	return duration
}

// SweepInterval returns notify.sweep_interval.
func (c *Config) SweepInterval() time.Duration {
	duration, _ := parseDuration("notify.sweep_interval", c.Notify.SweepInterval)
	return duration
}

// NotifyStatuses parses notify.on. Empty yields nil so the notifier
// applies its own default.
func (c *Config) NotifyStatuses() ([]presence.Status, error) {
	var statuses []presence.Status
	for _, name := range c.Notify.On {
		status := presence.Status(name)
		switch status {
		case presence.StatusPresent, presence.StatusAway, presence.StatusOffline:
			statuses = append(statuses, status)
		default:
			return nil, fmt.Errorf("notify.on: unknown status %q", name)
		}
	}
	return statuses, nil
}

// EnsurePaths creates the state directory and the socket's parent.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.State, filepath.Dir(c.Paths.Socket)} {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return duration, nil
}

// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the Updraft agent.
//
// Configuration is loaded from a single YAML file specified by:
//   - the UPDRAFT_CONFIG environment variable, or
//   - the --config flag passed to the agent
//
// There are no fallbacks or automatic discovery.
//
// Secrets never live in the file. The broker password and the SMTP
// password are read from UPDRAFT_BROKER_PASSWORD and
// UPDRAFT_SMTP_PASSWORD at load time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath is the environment variable naming the config file.
const EnvConfigPath = "UPDRAFT_CONFIG"

// Duration wraps time.Duration so YAML values can be written in the
// usual Go form ("60s", "5m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// EnvBrokerPassword supplies the MQTT broker password.
const EnvBrokerPassword = "UPDRAFT_BROKER_PASSWORD"

// EnvSMTPPassword supplies the notification SMTP password.
const EnvSMTPPassword = "UPDRAFT_SMTP_PASSWORD"

// Config is the master configuration for the agent.
type Config struct {
	// Paths configures file locations for the update cycle.
	Paths PathsConfig `yaml:"paths"`

	// Update configures the supervisor loop.
	Update UpdateConfig `yaml:"update"`

	// Repo configures the remote source of candidate versions.
	Repo RepoConfig `yaml:"repo"`

	// Broker configures the MQTT data plane.
	Broker BrokerConfig `yaml:"broker"`

	// Email configures operator notifications. Nil means
	// notifications are discarded (logged only).
	Email *EmailConfig `yaml:"email,omitempty"`
}

// PathsConfig configures the files the update cycle touches.
type PathsConfig struct {
	// Running is the executable the agent replaces on update. Empty
	// means the agent's own executable, resolved at startup.
	Running string `yaml:"running"`

	// Backup receives a copy of the running file before each update.
	// Default: <running>.prev
	Backup string `yaml:"backup"`

	// StateDir holds the failed-update ledger and the transition
	// state file. Default: /var/lib/updraft
	StateDir string `yaml:"state_dir"`
}

// UpdateConfig configures the supervisor loop.
type UpdateConfig struct {
	// CheckInterval is the fixed delay between update checks.
	// Default: 60s
	CheckInterval Duration `yaml:"check_interval"`
}

// RepoConfig configures the git remote the candidate comes from.
type RepoConfig struct {
	// URL is the remote to clone and pull. Required.
	URL string `yaml:"url"`

	// Dir is the local clone directory. Default: <state_dir>/repo
	Dir string `yaml:"dir"`
}

// BrokerConfig configures the MQTT connection.
type BrokerConfig struct {
	// Host is the broker hostname. Required.
	Host string `yaml:"host"`

	// Port is the broker TLS port. Default: 8883
	Port int `yaml:"port"`

	// Topic is the sensor data topic. Default: sensors/data
	Topic string `yaml:"topic"`

	// Username authenticates against the broker. Required.
	Username string `yaml:"username"`

	// CACert is the PEM file with the CA that signed the broker
	// certificate. Required.
	CACert string `yaml:"ca_cert"`

	// Password comes from UPDRAFT_BROKER_PASSWORD, never the file.
	Password string `yaml:"-"`
}

// EmailConfig configures SMTP notifications.
type EmailConfig struct {
	// From and To are the sender and recipient addresses. Required.
	From string `yaml:"from"`
	To   string `yaml:"to"`

	// Host is the SMTP server. Required. Port defaults to 587.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Username authenticates against the SMTP server. Required.
	Username string `yaml:"username"`

	// Password comes from UPDRAFT_SMTP_PASSWORD, never the file.
	Password string `yaml:"-"`
}

// Locate resolves the config file path from the --config flag value or
// the UPDRAFT_CONFIG environment variable, in that order.
func Locate(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if fromEnv := os.Getenv(EnvConfigPath); fromEnv != "" {
		return fromEnv, nil
	}
	return "", fmt.Errorf("no config file: pass --config or set %s", EnvConfigPath)
}

// Load reads, defaults, and validates the configuration at path.
// Secrets are filled in from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	config.applyDefaults()
	config.Broker.Password = os.Getenv(EnvBrokerPassword)
	if config.Email != nil {
		config.Email.Password = os.Getenv(EnvSMTPPassword)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Paths.StateDir == "" {
		c.Paths.StateDir = "/var/lib/updraft"
	}
	if c.Paths.Backup == "" && c.Paths.Running != "" {
		c.Paths.Backup = c.Paths.Running + ".prev"
	}
	if c.Update.CheckInterval == 0 {
		c.Update.CheckInterval = Duration(time.Minute)
	}
	if c.Repo.Dir == "" {
		c.Repo.Dir = filepath.Join(c.Paths.StateDir, "repo")
	}
	if c.Broker.Port == 0 {
		c.Broker.Port = 8883
	}
	if c.Broker.Topic == "" {
		c.Broker.Topic = "sensors/data"
	}
	if c.Email != nil && c.Email.Port == 0 {
		c.Email.Port = 587
	}
}

func (c *Config) validate() error {
	if c.Repo.URL == "" {
		return fmt.Errorf("repo.url is required")
	}
	if c.Update.CheckInterval < 0 {
		return fmt.Errorf("update.check_interval must be positive, got %s", time.Duration(c.Update.CheckInterval))
	}
	if c.Broker.Host == "" {
		return fmt.Errorf("broker.host is required")
	}
	if c.Broker.Username == "" {
		return fmt.Errorf("broker.username is required")
	}
	if c.Broker.CACert == "" {
		return fmt.Errorf("broker.ca_cert is required")
	}
	if c.Email != nil {
		switch {
		case c.Email.From == "":
			return fmt.Errorf("email.from is required when email is configured")
		case c.Email.To == "":
			return fmt.Errorf("email.to is required when email is configured")
		case c.Email.Host == "":
			return fmt.Errorf("email.host is required when email is configured")
		case c.Email.Username == "":
			return fmt.Errorf("email.username is required when email is configured")
		}
	}
	return nil
}

// LedgerPath is where the failed-update ledger lives.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "failed-update.json")
}

// TransitionPath is where the pre-exec transition state lives.
func (c *Config) TransitionPath() string {
	return filepath.Join(c.Paths.StateDir, "transition.json")
}

// CandidatePath is where the candidate version of the running file
// lands inside the clone.
func (c *Config) CandidatePath() string {
	return filepath.Join(c.Repo.Dir, filepath.Base(c.Paths.Running))
}

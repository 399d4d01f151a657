// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the agent's YAML configuration.
// There is exactly one configuration file, named on the command line;
// no search paths, no merging.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Session backends.
const (
	BackendEphemeral = "ephemeral"
	BackendFile      = "file"
	BackendKeyring   = "keyring"
)

const defaultPollInterval = 30 * time.Minute

// Config is the full agent configuration.
type Config struct {
	Homeserver string  `yaml:"homeserver"`
	Account    Account `yaml:"account"`

	// IgnoreOwnMessages suppresses command handling for the agent's own
	// messages. Defaults to true; turning it off risks reply loops.
	IgnoreOwnMessages *bool `yaml:"ignore_own_messages"`

	// Autojoin accepts room invites (subject to AllowedUsers). Defaults
	// to true.
	Autojoin *bool `yaml:"autojoin"`

	// AllowedUsers is the user allowlist for commands and invites.
	// Empty means everyone is trusted.
	AllowedUsers []string `yaml:"allowed_users"`

	Poll    Poll     `yaml:"poll"`
	Sources []Source `yaml:"sources"`
	Session Session  `yaml:"session"`
}

// Account holds the Matrix login identity. Password may be empty, in
// which case it is resolved from the environment or a prompt at
// startup.
type Account struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	DeviceName string `yaml:"device_name"`
}

// Poll configures the polling schedule and the listing root.
type Poll struct {
	Interval time.Duration `yaml:"interval"`
	BaseURL  string        `yaml:"base_url"`
}

// Source is one watched listing path.
type Source struct {
	Name    string `yaml:"name"`
	Path    string `yaml:"path"`
	Filter  string `yaml:"filter"`
	Recurse bool   `yaml:"recurse"`
}

// Session selects and configures the credential store backend.
type Session struct {
	Backend    string `yaml:"backend"`
	Dir        string `yaml:"dir"`
	Passphrase string `yaml:"passphrase"`
	Service    string `yaml:"service"`
}

// Load reads, parses, and validates the configuration file, applying
// defaults for omitted optional fields.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.IgnoreOwnMessages == nil {
		c.IgnoreOwnMessages = boolPtr(true)
	}
	if c.Autojoin == nil {
		c.Autojoin = boolPtr(true)
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = defaultPollInterval
	}
	if c.Account.DeviceName == "" {
		c.Account.DeviceName = "pubwatch"
	}
	if c.Session.Backend == "" {
		c.Session.Backend = BackendEphemeral
	}
}

func (c *Config) validate() error {
	if c.Homeserver == "" {
		return fmt.Errorf("homeserver is required")
	}
	if c.Account.Username == "" {
		return fmt.Errorf("account.username is required")
	}
	if c.Poll.BaseURL == "" {
		return fmt.Errorf("poll.base_url is required")
	}
	if c.Poll.Interval < time.Second {
		return fmt.Errorf("poll.interval %s is below the 1s minimum", c.Poll.Interval)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	seen := make(map[string]bool, len(c.Sources))
	for i, source := range c.Sources {
		if source.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if source.Path == "" {
			return fmt.Errorf("sources[%d] (%s): path is required", i, source.Name)
		}
		if seen[source.Name] {
			return fmt.Errorf("duplicate source name %q", source.Name)
		}
		seen[source.Name] = true
	}

	switch c.Session.Backend {
	case BackendEphemeral:
	case BackendFile:
		if c.Session.Dir == "" {
			return fmt.Errorf("session.dir is required for the file backend")
		}
	case BackendKeyring:
		if c.Session.Service == "" {
			return fmt.Errorf("session.service is required for the keyring backend")
		}
	default:
		return fmt.Errorf("unknown session.backend %q (want %s, %s, or %s)",
			c.Session.Backend, BackendEphemeral, BackendFile, BackendKeyring)
	}
	return nil
}

func boolPtr(v bool) *bool { return &v }

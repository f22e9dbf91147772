// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the Burrow daemon configuration.
//
// Configuration comes from a single YAML file named by the
// BURROW_CONFIG environment variable or a --config flag. There are no
// fallbacks and no automatic discovery: deterministic, auditable
// configuration with no hidden overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the Burrow daemon.
type Config struct {
	// Paths configures directory and file locations.
	Paths PathsConfig `yaml:"paths"`

	// Container configures the sandbox engine and per-run limits.
	Container ContainerConfig `yaml:"container"`

	// Credentials configures the allowlisted credentials file mounted
	// into sandboxes.
	Credentials CredentialsConfig `yaml:"credentials"`

	// Scheduler configures the task scheduler loop.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Router configures the mailbox poll loop.
	Router RouterConfig `yaml:"router"`

	// State configures kernel state persistence.
	State StateConfig `yaml:"state"`
}

// PathsConfig configures locations on the host filesystem. Root is
// required; everything else defaults to a path under it.
type PathsConfig struct {
	// Root is the base directory for Burrow data: tenant folders,
	// mailboxes, session stores, run logs, quarantine.
	Root string `yaml:"root"`

	// Policy is the mount policy file (JSONC). Defaults to
	// <root>/mount-policy.jsonc.
	Policy string `yaml:"policy,omitempty"`

	// Database is the SQLite task database. Defaults to
	// <root>/burrow.db.
	Database string `yaml:"database,omitempty"`

	// StateSnapshot is the kernel state snapshot file. Defaults to
	// <root>/state.cbor.
	StateSnapshot string `yaml:"state_snapshot,omitempty"`

	// Workspace is the broad working directory mounted for the main
	// tenant. Defaults to <root>/workspace.
	Workspace string `yaml:"workspace,omitempty"`

	// Shared is an optional read-only folder exposed to non-main
	// tenants when it exists. Defaults to <root>/shared.
	Shared string `yaml:"shared,omitempty"`
}

// ContainerConfig configures sandbox execution.
type ContainerConfig struct {
	// Engine is the container engine binary. Defaults to "docker";
	// any CLI-compatible engine (podman) works.
	Engine string `yaml:"engine,omitempty"`

	// Image is the sandbox image reference. Required.
	Image string `yaml:"image"`

	// Command is the entrypoint argument vector run inside the
	// sandbox. Required.
	Command []string `yaml:"command"`

	// TimeoutSeconds is the default per-run wall-clock timeout.
	// Tenants may override it. Defaults to 300.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`

	// StopGraceSeconds is the window between graceful stop and forced
	// kill. Defaults to 10.
	StopGraceSeconds int `yaml:"stop_grace_seconds,omitempty"`

	// CaptureLimitBytes caps each captured output stream. Defaults to
	// 10 MiB.
	CaptureLimitBytes int `yaml:"capture_limit_bytes,omitempty"`

	// Verbose persists full input/output transcripts in run logs
	// instead of bounded summaries.
	Verbose bool `yaml:"verbose,omitempty"`
}

// CredentialsConfig configures the generated credentials file.
type CredentialsConfig struct {
	// Path is the credentials source: an env-style file, or an
	// age-encrypted bundle when it has a .age suffix. Empty disables
	// the credentials mount entirely.
	Path string `yaml:"path,omitempty"`

	// Identity is the age identity file used to decrypt a sealed
	// bundle. Required when Path ends in .age.
	Identity string `yaml:"identity,omitempty"`

	// Allow lists the variable names copied into the generated file.
	// Anything not named here never reaches a sandbox.
	Allow []string `yaml:"allow,omitempty"`
}

// SchedulerConfig configures the task scheduler.
type SchedulerConfig struct {
	// PollIntervalSeconds is how often the scheduler scans for due
	// tasks. Defaults to 30.
	PollIntervalSeconds int `yaml:"poll_interval_seconds,omitempty"`

	// Timezone is the IANA zone cron expressions are evaluated in.
	// Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`
}

// RouterConfig configures the mailbox router.
type RouterConfig struct {
	// PollIntervalSeconds is how often mailboxes are scanned.
	// Defaults to 2.
	PollIntervalSeconds int `yaml:"poll_interval_seconds,omitempty"`
}

// StateConfig configures kernel state persistence.
type StateConfig struct {
	// FlushIntervalSeconds is how often dirty state is flushed to the
	// snapshot file. Defaults to 30.
	FlushIntervalSeconds int `yaml:"flush_interval_seconds,omitempty"`
}

// Load reads and validates the configuration. An empty path falls back
// to the BURROW_CONFIG environment variable; if that is also empty,
// Load fails.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("BURROW_CONFIG")
	}
	if path == "" {
		return nil, fmt.Errorf("no config file: set BURROW_CONFIG or pass --config")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Paths.Root != "" {
		if c.Paths.Policy == "" {
			c.Paths.Policy = filepath.Join(c.Paths.Root, "mount-policy.jsonc")
		}
		if c.Paths.Database == "" {
			c.Paths.Database = filepath.Join(c.Paths.Root, "burrow.db")
		}
		if c.Paths.StateSnapshot == "" {
			c.Paths.StateSnapshot = filepath.Join(c.Paths.Root, "state.cbor")
		}
		if c.Paths.Workspace == "" {
			c.Paths.Workspace = filepath.Join(c.Paths.Root, "workspace")
		}
		if c.Paths.Shared == "" {
			c.Paths.Shared = filepath.Join(c.Paths.Root, "shared")
		}
	}
	if c.Container.Engine == "" {
		c.Container.Engine = "docker"
	}
	if c.Container.TimeoutSeconds == 0 {
		c.Container.TimeoutSeconds = 300
	}
	if c.Container.StopGraceSeconds == 0 {
		c.Container.StopGraceSeconds = 10
	}
	if c.Container.CaptureLimitBytes == 0 {
		c.Container.CaptureLimitBytes = 10 << 20
	}
	if c.Scheduler.PollIntervalSeconds == 0 {
		c.Scheduler.PollIntervalSeconds = 30
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = "UTC"
	}
	if c.Router.PollIntervalSeconds == 0 {
		c.Router.PollIntervalSeconds = 2
	}
	if c.State.FlushIntervalSeconds == 0 {
		c.State.FlushIntervalSeconds = 30
	}
}

func (c *Config) validate() error {
	if c.Paths.Root == "" {
		return fmt.Errorf("paths.root is required")
	}
	if !filepath.IsAbs(c.Paths.Root) {
		return fmt.Errorf("paths.root must be absolute, got %q", c.Paths.Root)
	}
	if c.Container.Image == "" {
		return fmt.Errorf("container.image is required")
	}
	if len(c.Container.Command) == 0 {
		return fmt.Errorf("container.command is required")
	}
	if c.Credentials.Path != "" && filepath.Ext(c.Credentials.Path) == ".age" && c.Credentials.Identity == "" {
		return fmt.Errorf("credentials.identity is required for sealed bundle %s", c.Credentials.Path)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	return nil
}

// Timeout returns the default per-run timeout as a duration.
func (c *ContainerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StopGrace returns the graceful-stop window as a duration.
func (c *ContainerConfig) StopGrace() time.Duration {
	return time.Duration(c.StopGraceSeconds) * time.Second
}

// TenantDir returns the tenant's private folder.
func (p *PathsConfig) TenantDir(folder string) string {
	return filepath.Join(p.Root, "tenants", folder)
}

// MailboxDir returns the tenant's mailbox directory.
func (p *PathsConfig) MailboxDir(folder string) string {
	return filepath.Join(p.Root, "mailbox", folder)
}

// SessionDir returns the tenant's session store directory.
func (p *PathsConfig) SessionDir(folder string) string {
	return filepath.Join(p.Root, "sessions", folder)
}

// LogDir returns the tenant's run-log directory.
func (p *PathsConfig) LogDir(folder string) string {
	return filepath.Join(p.Root, "logs", folder)
}

// QuarantineDir returns the quarantine directory for a source tenant.
func (p *PathsConfig) QuarantineDir(folder string) string {
	return filepath.Join(p.Root, "quarantine", folder)
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete quorum configuration
type Config struct {
	Pool      PoolConfig      `mapstructure:"pool"`
	Adapters  AdaptersConfig  `mapstructure:"adapters"`
	Consensus ConsensusConfig `mapstructure:"consensus"`
	Store     StoreConfig     `mapstructure:"store"`
	Inbox     InboxConfig     `mapstructure:"inbox"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Paths     PathsConfig     `mapstructure:"paths"`
}

// PoolConfig controls the bounded executor
type PoolConfig struct {
	// MaxConcurrency is the number of concurrent agent executions.
	// Values outside 1..32 are clamped by the executor, not rejected here.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// Adapters is the ordered adapter preference; the first available one is used
	Adapters []string `mapstructure:"adapters"`
}

// AdaptersConfig holds per-adapter settings
type AdaptersConfig struct {
	Claude ClaudeConfig `mapstructure:"claude"`
	Codex  CodexConfig  `mapstructure:"codex"`
}

// ClaudeConfig configures the Claude Code CLI adapter
type ClaudeConfig struct {
	// Command is the executable name or path (default: "claude")
	Command string `mapstructure:"command"`
	// SkipPermissions passes --dangerously-skip-permissions
	SkipPermissions bool `mapstructure:"skip_permissions"`
}

// CodexConfig configures the Codex CLI adapter
type CodexConfig struct {
	// Command is the executable name or path (default: "codex")
	Command string `mapstructure:"command"`
	// ApprovalMode is one of "default", "full-auto", "bypass"
	ApprovalMode string `mapstructure:"approval_mode"`
}

// ConsensusConfig controls review voting
type ConsensusConfig struct {
	// Strategy is the default quorum strategy: "majority", "unanimous" or "weighted"
	Strategy string `mapstructure:"strategy"`
	// RequiredVotes is the default quorum size
	RequiredVotes int `mapstructure:"required_votes"`
	// TimeoutSeconds is how long a session waits for votes before resolving as rejected
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// AutoReviewers is the number of reviewer executions whose verdicts are cast as votes
	AutoReviewers int `mapstructure:"auto_reviewers"`
	// RetentionMinutes prunes resolved sessions older than this (0 = keep them)
	RetentionMinutes int `mapstructure:"retention_minutes"`
}

// StoreConfig controls snapshot persistence
type StoreConfig struct {
	// Backend is "sqlite", "json" or "none"
	Backend string `mapstructure:"backend"`
	// PersistTimeoutSeconds bounds each write-through call
	PersistTimeoutSeconds int `mapstructure:"persist_timeout_seconds"`
}

// InboxConfig controls the file-based vote inbox
type InboxConfig struct {
	// Enabled starts the inbox watcher during runs
	Enabled bool `mapstructure:"enabled"`
	// Dir is the watched directory; empty means <data_dir>/inbox
	Dir string `mapstructure:"dir"`
}

// ArtifactsConfig controls which files are recorded after the build role
type ArtifactsConfig struct {
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`
}

// SandboxConfig restricts where agents may run
type SandboxConfig struct {
	// Root, if set, is the directory every task work dir must lie under
	Root string `mapstructure:"root"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is active (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum size of a log file before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// PathsConfig controls file system paths
type PathsConfig struct {
	// DataDir holds logs, snapshots and the inbox (default: ".quorum").
	// Relative paths resolve against the working directory.
	DataDir string `mapstructure:"data_dir"`
}

// ResolveDataDir returns the absolute data directory, expanding ~ and
// resolving relative paths against baseDir.
func (p *PathsConfig) ResolveDataDir(baseDir string) string {
	path := p.DataDir
	if path == "" {
		path = ".quorum"
	}
	return resolvePath(path, baseDir)
}

// ResolveInboxDir returns the inbox directory, defaulting to <data_dir>/inbox.
func (c *Config) ResolveInboxDir(baseDir string) string {
	if c.Inbox.Dir == "" {
		return filepath.Join(c.Paths.ResolveDataDir(baseDir), "inbox")
	}
	return resolvePath(c.Inbox.Dir, baseDir)
}

// ResolveSandboxRoot returns the absolute sandbox root, or "" if none is set.
func (c *Config) ResolveSandboxRoot(baseDir string) string {
	if c.Sandbox.Root == "" {
		return ""
	}
	return resolvePath(c.Sandbox.Root, baseDir)
}

func resolvePath(path, baseDir string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			MaxConcurrency: 4,
			Adapters:       []string{"claude", "codex", "echo"},
		},
		Adapters: AdaptersConfig{
			Claude: ClaudeConfig{
				Command:         "claude",
				SkipPermissions: true,
			},
			Codex: CodexConfig{
				Command:      "codex",
				ApprovalMode: "full-auto",
			},
		},
		Consensus: ConsensusConfig{
			Strategy:         "majority",
			RequiredVotes:    3,
			TimeoutSeconds:   300, // 5 minutes
			AutoReviewers:    0,
			RetentionMinutes: 0, // keep resolved sessions for the whole run
		},
		Store: StoreConfig{
			Backend:               "sqlite",
			PersistTimeoutSeconds: 10,
		},
		Inbox: InboxConfig{
			Enabled: true,
			Dir:     "", // Empty means <data_dir>/inbox
		},
		Artifacts: ArtifactsConfig{
			Include: []string{"**/*"},
			Exclude: []string{".git/**", ".quorum/**"},
		},
		Sandbox: SandboxConfig{
			Root: "",
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Paths: PathsConfig{
			DataDir: ".quorum",
		},
	}
}

// Timeout returns the session timeout as a time.Duration
func (c *ConsensusConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Retention returns the resolved-session retention (0 means keep)
func (c *ConsensusConfig) Retention() time.Duration {
	return time.Duration(c.RetentionMinutes) * time.Minute
}

// PersistTimeout returns the write-through deadline as a time.Duration
func (c *StoreConfig) PersistTimeout() time.Duration {
	return time.Duration(c.PersistTimeoutSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Pool defaults
	viper.SetDefault("pool.max_concurrency", defaults.Pool.MaxConcurrency)
	viper.SetDefault("pool.adapters", defaults.Pool.Adapters)

	// Adapter defaults
	viper.SetDefault("adapters.claude.command", defaults.Adapters.Claude.Command)
	viper.SetDefault("adapters.claude.skip_permissions", defaults.Adapters.Claude.SkipPermissions)
	viper.SetDefault("adapters.codex.command", defaults.Adapters.Codex.Command)
	viper.SetDefault("adapters.codex.approval_mode", defaults.Adapters.Codex.ApprovalMode)

	// Consensus defaults
	viper.SetDefault("consensus.strategy", defaults.Consensus.Strategy)
	viper.SetDefault("consensus.required_votes", defaults.Consensus.RequiredVotes)
	viper.SetDefault("consensus.timeout_seconds", defaults.Consensus.TimeoutSeconds)
	viper.SetDefault("consensus.auto_reviewers", defaults.Consensus.AutoReviewers)
	viper.SetDefault("consensus.retention_minutes", defaults.Consensus.RetentionMinutes)

	// Store defaults
	viper.SetDefault("store.backend", defaults.Store.Backend)
	viper.SetDefault("store.persist_timeout_seconds", defaults.Store.PersistTimeoutSeconds)

	// Inbox defaults
	viper.SetDefault("inbox.enabled", defaults.Inbox.Enabled)
	viper.SetDefault("inbox.dir", defaults.Inbox.Dir)

	// Artifact defaults
	viper.SetDefault("artifacts.include", defaults.Artifacts.Include)
	viper.SetDefault("artifacts.exclude", defaults.Artifacts.Exclude)

	// Sandbox defaults
	viper.SetDefault("sandbox.root", defaults.Sandbox.Root)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Paths defaults
	viper.SetDefault("paths.data_dir", defaults.Paths.DataDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if it
// cannot be loaded
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "quorum")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quorum"
	}
	return filepath.Join(home, ".config", "quorum")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidStrategies returns the accepted consensus strategy names
func ValidStrategies() []string {
	return []string{"majority", "unanimous", "weighted"}
}

// ValidStoreBackends returns the accepted store backend names
func ValidStoreBackends() []string {
	return []string{"sqlite", "json", "none"}
}

// ValidAdapters returns the adapter IDs the executor knows how to build
func ValidAdapters() []string {
	return []string{"claude", "codex", "echo"}
}

// ValidApprovalModes returns the accepted Codex approval modes
func ValidApprovalModes() []string {
	return []string{"default", "full-auto", "bypass"}
}

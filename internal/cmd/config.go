package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/quorum/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or validate quorum configuration",
	Long: `View or validate quorum configuration.

Without arguments, displays the effective configuration.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	RunE:  runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/quorum/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		printf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		printf(out, "# Config file: (none - using defaults)\n")
	}

	settings := viper.AllSettings()
	delete(settings, "config")
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	printf(out, "%s", data)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if _, err := config.Load(); err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			printf(out, "%s configuration has %d error(s):\n", color.RedString("✗"), len(verrs))
			for _, e := range verrs {
				printf(out, "  - %s\n", e.Error())
			}
			return fmt.Errorf("configuration is invalid")
		}
		return err
	}
	printf(out, "%s configuration is valid\n", color.GreenString("✓"))
	return nil
}

const defaultConfigContent = `# Quorum Configuration

# Bounded executor
pool:
  # Concurrent agent executions (clamped to 1..32)
  max_concurrency: 4
  # Adapter preference; the first available one runs each role
  adapters: [claude, codex, echo]

adapters:
  claude:
    command: claude
    skip_permissions: true
  codex:
    command: codex
    # Options: default, full-auto, bypass
    approval_mode: full-auto

consensus:
  # Options: majority, unanimous, weighted
  strategy: majority
  required_votes: 3
  # Sessions resolve with the votes they have after this long
  timeout_seconds: 300
  # Reviewer executions whose verdicts are cast as votes
  auto_reviewers: 0
  # Forget resolved sessions older than this (0 = keep)
  retention_minutes: 0

store:
  # Options: sqlite, json, none
  backend: sqlite
  persist_timeout_seconds: 10

inbox:
  enabled: true
  # Empty means <data_dir>/inbox
  dir: ""

artifacts:
  include: ["**/*"]
  exclude: [".git/**", ".quorum/**"]

sandbox:
  # If set, every task work dir must lie under this directory
  root: ""

logging:
  enabled: true
  # Options: debug, info, warn, error
  level: info
  max_size_mb: 10
  max_backups: 3

paths:
  data_dir: .quorum
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	printf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		printf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		printf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	printf(out, "\nSearch paths:\n")
	printf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	printf(out, "  2. $HOME/.config/quorum/config.yaml\n")
	printf(out, "  3. ./config.yaml (current directory)\n")
	printf(out, "\nEnvironment variables: QUORUM_* (e.g., QUORUM_CONSENSUS_STRATEGY)\n")
	return nil
}

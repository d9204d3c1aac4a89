package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "consensus.required_votes")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePool()...)
	errors = append(errors, c.validateAdapters()...)
	errors = append(errors, c.validateConsensus()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateArtifacts()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validatePaths()...)

	return errors
}

// validatePool validates the PoolConfig. Concurrency is clamped by the
// executor, so only the adapter list is checked here.
func (c *Config) validatePool() []ValidationError {
	var errors []ValidationError

	if len(c.Pool.Adapters) == 0 {
		errors = append(errors, ValidationError{
			Field:   "pool.adapters",
			Value:   c.Pool.Adapters,
			Message: "must list at least one adapter",
		})
	}

	seen := make(map[string]bool, len(c.Pool.Adapters))
	for i, id := range c.Pool.Adapters {
		field := fmt.Sprintf("pool.adapters[%d]", i)
		if !slices.Contains(ValidAdapters(), id) {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   id,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidAdapters(), ", ")),
			})
			continue
		}
		if seen[id] {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   id,
				Message: "duplicate adapter",
			})
		}
		seen[id] = true
	}

	return errors
}

// validateAdapters validates the AdaptersConfig
func (c *Config) validateAdapters() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Adapters.Claude.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "adapters.claude.command",
			Value:   c.Adapters.Claude.Command,
			Message: "must not be empty",
		})
	}
	if strings.TrimSpace(c.Adapters.Codex.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "adapters.codex.command",
			Value:   c.Adapters.Codex.Command,
			Message: "must not be empty",
		})
	}
	if !slices.Contains(ValidApprovalModes(), c.Adapters.Codex.ApprovalMode) {
		errors = append(errors, ValidationError{
			Field:   "adapters.codex.approval_mode",
			Value:   c.Adapters.Codex.ApprovalMode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidApprovalModes(), ", ")),
		})
	}

	return errors
}

// validateConsensus validates the ConsensusConfig
func (c *Config) validateConsensus() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidStrategies(), c.Consensus.Strategy) {
		errors = append(errors, ValidationError{
			Field:   "consensus.strategy",
			Value:   c.Consensus.Strategy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStrategies(), ", ")),
		})
	}

	if c.Consensus.RequiredVotes < 1 {
		errors = append(errors, ValidationError{
			Field:   "consensus.required_votes",
			Value:   c.Consensus.RequiredVotes,
			Message: "must be at least 1",
		})
	}

	if c.Consensus.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "consensus.timeout_seconds",
			Value:   c.Consensus.TimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	if c.Consensus.AutoReviewers < 0 {
		errors = append(errors, ValidationError{
			Field:   "consensus.auto_reviewers",
			Value:   c.Consensus.AutoReviewers,
			Message: "must be non-negative",
		})
	}

	if c.Consensus.RetentionMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "consensus.retention_minutes",
			Value:   c.Consensus.RetentionMinutes,
			Message: "must be non-negative (0 keeps resolved sessions)",
		})
	}

	return errors
}

// validateStore validates the StoreConfig
func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidStoreBackends(), c.Store.Backend) {
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Value:   c.Store.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStoreBackends(), ", ")),
		})
	}

	if c.Store.PersistTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.persist_timeout_seconds",
			Value:   c.Store.PersistTimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateArtifacts checks that every glob pattern parses
func (c *Config) validateArtifacts() []ValidationError {
	var errors []ValidationError

	check := func(prefix string, patterns []string) {
		for i, p := range patterns {
			if !doublestar.ValidatePattern(p) {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("%s[%d]", prefix, i),
					Value:   p,
					Message: "invalid glob pattern",
				})
			}
		}
	}
	check("artifacts.include", c.Artifacts.Include)
	check("artifacts.exclude", c.Artifacts.Exclude)

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validatePaths validates the path-valued settings
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	const maxPathLength = 4096
	paths := []struct {
		field string
		value string
	}{
		{"paths.data_dir", c.Paths.DataDir},
		{"inbox.dir", c.Inbox.Dir},
		{"sandbox.root", c.Sandbox.Root},
	}
	for _, p := range paths {
		if p.value == "" {
			continue
		}
		if strings.ContainsRune(p.value, '\x00') {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.value,
				Message: "path contains invalid null character",
			})
		}
		if len(p.value) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.value,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	return errors
}

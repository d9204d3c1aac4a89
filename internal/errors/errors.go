// Package errors provides the error vocabulary shared by quorum's
// packages: sentinel errors for the conditions callers branch on, typed
// errors that carry task, role and adapter context, and classification
// helpers.
//
// # Error Types
//
// Domain errors describe which subsystem failed:
//   - ConsensusError: a quorum session could not be opened or resolved
//   - ExecutionError: a role execution failed inside the bounded executor
//   - StoreError: a snapshot could not be written to or read from a store
//
// Semantic errors describe common conditions:
//   - NotFoundError: an unknown task or session
//   - ValidationError: invalid input or configuration
//
// # Usage
//
//	err := errors.NewExecutionError("adapter exited non-zero", cause).
//	    WithTaskID("t1").WithRole("builder").WithAdapter("claude")
//
//	if errors.Is(err, errors.ErrAdapterFailed) { ... }
//
//	var execErr *errors.ExecutionError
//	if errors.As(err, &execErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Re-export standard library functions so callers can import only this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Level returns the slog level an error of this severity is logged at.
func (s Severity) Level() slog.Level {
	switch s {
	case SeverityDebug:
		return slog.LevelDebug
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Task and registry sentinel errors
var (
	// ErrTaskNotFound indicates that no snapshot exists for a task ID.
	ErrTaskNotFound = New("task not found")
	// ErrInvalidStatus indicates an undeclared lifecycle status.
	ErrInvalidStatus = New("invalid task status")
	// ErrInvalidRole indicates an undeclared role.
	ErrInvalidRole = New("invalid role")
)

// Consensus sentinel errors
var (
	// ErrUnknownStrategy indicates a quorum strategy that is not recognized.
	ErrUnknownStrategy = New("unknown quorum strategy")
	// ErrInvalidQuorum indicates a required vote count below one.
	ErrInvalidQuorum = New("required votes must be at least 1")
	// ErrSessionNotFound indicates no consensus session exists for a task.
	ErrSessionNotFound = New("consensus session not found")
)

// Execution sentinel errors
var (
	// ErrNoAdapter indicates that no configured adapter is available.
	ErrNoAdapter = New("no adapter available")
	// ErrUnknownAdapter indicates an adapter override that is not registered.
	ErrUnknownAdapter = New("unknown adapter")
	// ErrAdapterFailed indicates that an adapter invocation failed.
	ErrAdapterFailed = New("adapter invocation failed")
	// ErrSandboxDenied indicates that the sandbox rejected an execution request.
	ErrSandboxDenied = New("execution denied by sandbox")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error
// -----------------------------------------------------------------------------

// QuorumError is implemented by every typed error in this package.
type QuorumError interface {
	error
	Unwrap() error
	Is(target error) bool
	Severity() Severity
	IsRetryable() bool
}

type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity { return e.severity }

func (e *baseError) IsRetryable() bool { return e.retryable }

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain Errors
// -----------------------------------------------------------------------------

// ConsensusError represents a failure to open or resolve a quorum session.
//
// Example:
//
//	err := errors.NewConsensusError("cannot open session", errors.ErrUnknownStrategy).
//	    WithTaskID("t1").WithStrategy("plurality")
//	// consensus error [task=t1, strategy=plurality]: cannot open session: unknown quorum strategy
type ConsensusError struct {
	baseError
	TaskID   string
	Strategy string
}

// NewConsensusError creates a new ConsensusError.
func NewConsensusError(message string, cause error) *ConsensusError {
	return &ConsensusError{
		baseError: baseError{message: message, cause: cause, severity: SeverityError},
	}
}

// WithTaskID adds a task ID to the error context.
func (e *ConsensusError) WithTaskID(id string) *ConsensusError {
	e.TaskID = id
	return e
}

// WithStrategy adds the requested strategy to the error context.
func (e *ConsensusError) WithStrategy(s string) *ConsensusError {
	e.Strategy = s
	return e
}

func (e *ConsensusError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, "task="+e.TaskID)
	}
	if e.Strategy != "" {
		parts = append(parts, "strategy="+e.Strategy)
	}
	return e.format("consensus error", parts)
}

// Is checks if this error matches the target.
func (e *ConsensusError) Is(target error) bool {
	if _, ok := target.(*ConsensusError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ExecutionError represents a failed role execution.
//
// Example:
//
//	err := errors.NewExecutionError("exit status 1", cause).
//	    WithTaskID("t1").WithRole("builder").WithAdapter("claude")
type ExecutionError struct {
	baseError
	TaskID    string
	Role      string
	AdapterID string
}

// NewExecutionError creates a new ExecutionError. It matches ErrAdapterFailed.
// A cancelled execution has SeverityInfo and a timed-out one
// SeverityWarning; everything else is SeverityError.
func NewExecutionError(message string, cause error) *ExecutionError {
	severity := SeverityError
	switch {
	case Is(cause, ErrCanceled) || Is(cause, context.Canceled):
		severity = SeverityInfo
	case Is(cause, ErrTimeout) || Is(cause, context.DeadlineExceeded):
		severity = SeverityWarning
	}
	return &ExecutionError{
		baseError: baseError{message: message, cause: cause, severity: severity},
	}
}

// WithTaskID adds a task ID to the error context.
func (e *ExecutionError) WithTaskID(id string) *ExecutionError {
	e.TaskID = id
	return e
}

// WithRole adds the role to the error context.
func (e *ExecutionError) WithRole(role string) *ExecutionError {
	e.Role = role
	return e
}

// WithAdapter adds the adapter ID to the error context.
func (e *ExecutionError) WithAdapter(id string) *ExecutionError {
	e.AdapterID = id
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ExecutionError) WithRetryable(r bool) *ExecutionError {
	e.retryable = r
	return e
}

func (e *ExecutionError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, "task="+e.TaskID)
	}
	if e.Role != "" {
		parts = append(parts, "role="+e.Role)
	}
	if e.AdapterID != "" {
		parts = append(parts, "adapter="+e.AdapterID)
	}
	return e.format("execution error", parts)
}

// Is checks if this error matches the target.
func (e *ExecutionError) Is(target error) bool {
	if _, ok := target.(*ExecutionError); ok {
		return true
	}
	if target == ErrAdapterFailed {
		return true
	}
	return e.baseError.Is(target)
}

// StoreError represents a failure in a snapshot store.
type StoreError struct {
	baseError
	Backend string
	TaskID  string
}

// NewStoreError creates a new StoreError. Store errors are retryable by default.
func NewStoreError(message string, cause error) *StoreError {
	return &StoreError{
		baseError: baseError{message: message, cause: cause, severity: SeverityWarning, retryable: true},
	}
}

// WithBackend adds the store backend name to the error context.
func (e *StoreError) WithBackend(backend string) *StoreError {
	e.Backend = backend
	return e
}

// WithTaskID adds a task ID to the error context.
func (e *StoreError) WithTaskID(id string) *StoreError {
	e.TaskID = id
	return e
}

func (e *StoreError) Error() string {
	var parts []string
	if e.Backend != "" {
		parts = append(parts, "backend="+e.Backend)
	}
	if e.TaskID != "" {
		parts = append(parts, "task="+e.TaskID)
	}
	return e.format("store error", parts)
}

// Is checks if this error matches the target.
func (e *StoreError) Is(target error) bool {
	if _, ok := target.(*StoreError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a missing task or session.
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError. Task and session lookups
// also match ErrTaskNotFound and ErrSessionNotFound respectively.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError:    baseError{message: fmt.Sprintf("%s not found", resourceType), severity: SeverityWarning},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

func (e *NotFoundError) Error() string {
	if e.ResourceID != "" {
		return fmt.Sprintf("%s not found: %s", e.ResourceType, e.ResourceID)
	}
	return e.message
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	switch {
	case target == ErrTaskNotFound && e.ResourceType == "task":
		return true
	case target == ErrSessionNotFound && e.ResourceType == "session":
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or configuration.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{message: message, severity: SeverityWarning},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, "field="+e.Field)
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition.
// Typed errors report their own retryability; context deadlines and
// ErrTimeout are retryable; cancellation is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrCanceled) || Is(err, context.Canceled) {
		return false
	}
	var qe QuorumError
	if As(err, &qe) {
		return qe.IsRetryable()
	}
	return Is(err, ErrTimeout) || Is(err, context.DeadlineExceeded)
}

// FromContext tags a context error with ErrTimeout or ErrCanceled. The
// result still matches the original context error. Other errors are
// returned unchanged.
func FromContext(err error) error {
	switch {
	case err == nil:
		return nil
	case Is(err, context.DeadlineExceeded) && !Is(err, ErrTimeout):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case Is(err, context.Canceled) && !Is(err, ErrCanceled):
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	return err
}

// GetSeverity returns the severity of the error, SeverityError for
// errors outside this package.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var qe QuorumError
	if As(err, &qe) {
		return qe.Severity()
	}
	return SeverityError
}

// Wrap wraps an error with a context message. It returns nil for a nil error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

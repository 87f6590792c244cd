// Package errors provides centralized error definitions and error handling utilities
// for the taskbridge codebase. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - ConfigError: configuration that cannot be resolved (missing home directory)
//   - AuthError: unreadable or malformed credential material
//   - NetworkError: a backend request that failed, with status and body
//   - SerializationError: an event or submission that cannot cross the wire
//   - SessionError: errors related to a bridged conversation
//   - GitError: errors from the git CLI
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or state
//
// # Propagation
//
// Failures while resolving inputs (credentials, environment discovery) are
// absorbed by the caller and logged. Failures of an operation the user asked
// for (submit, apply, create, fetch) are returned with enough detail to
// diagnose them.
//
// # Usage
//
//	err := errors.NewNetworkError("GET", url, 502, body)
//	if errors.Is(err, errors.ErrSessionClosed) { ... }
//	var netErr *errors.NetworkError
//	if errors.As(err, &netErr) { ... }
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
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
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
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
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Auth-related sentinel errors
var (
	// ErrHomeNotFound indicates that no home directory could be resolved for
	// persisted credentials.
	ErrHomeNotFound = New("home directory not found")
	// ErrAuthFileMalformed indicates that the persisted auth record could not be parsed.
	ErrAuthFileMalformed = New("auth file malformed")
	// ErrNoToken indicates that a credential source had no usable token.
	ErrNoToken = New("no token available")
)

// Session-related sentinel errors
var (
	// ErrStreamClosed marks the clean end of a conversation event stream.
	ErrStreamClosed = New("stream closed")
	// ErrSessionClosed is returned by session operations issued after Close.
	ErrSessionClosed = New("session is closed")
	// ErrConversationNotFound indicates that the manager does not know the conversation.
	ErrConversationNotFound = New("conversation not found")
)

// Cloud-related sentinel errors
var (
	// ErrNoDiff indicates that a task has no diff to apply.
	ErrNoDiff = New("task has no diff")
	// ErrTaskNotFound indicates that the backend does not know the task.
	ErrTaskNotFound = New("task not found")
)

// Git-related sentinel errors
var (
	// ErrNotGitRepository indicates that the directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// BridgeError is the base interface for all taskbridge errors.
// It extends the standard error interface with methods for classification.
type BridgeError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func newBase(message string, cause error) baseError {
	return baseError{
		message:    message,
		cause:      cause,
		severity:   SeverityError,
		userFacing: true,
	}
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

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
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ConfigError is a fatal configuration problem, such as a home directory that
// is required but cannot be resolved.
type ConfigError struct {
	baseError
	Key  string
	Path string
}

// NewConfigError creates a new ConfigError.
func NewConfigError(message string, cause error) *ConfigError {
	e := &ConfigError{baseError: newBase(message, cause)}
	e.severity = SeverityCritical
	return e
}

// WithKey records the configuration key involved.
func (e *ConfigError) WithKey(key string) *ConfigError {
	e.Key = key
	return e
}

// WithPath records the filesystem path involved.
func (e *ConfigError) WithPath(path string) *ConfigError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *ConfigError) Error() string {
	var parts []string
	if e.Key != "" {
		parts = append(parts, "key="+e.Key)
	}
	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}
	return e.format("config error", parts)
}

// AuthError describes a credential source that could not produce a token.
// The resolver logs these and moves on to the next source.
type AuthError struct {
	baseError
	Source string
	Path   string
}

// NewAuthError creates a new AuthError.
func NewAuthError(source, message string, cause error) *AuthError {
	e := &AuthError{baseError: newBase(message, cause), Source: source}
	e.severity = SeverityWarning
	e.userFacing = false
	return e
}

// WithPath records the auth file path involved.
func (e *AuthError) WithPath(path string) *AuthError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *AuthError) Error() string {
	var parts []string
	if e.Source != "" {
		parts = append(parts, "source="+e.Source)
	}
	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}
	return e.format("auth error", parts)
}

// NetworkError is a failed backend request. StatusCode is zero when the
// request never produced a response.
type NetworkError struct {
	baseError
	Method     string
	URL        string
	StatusCode int
	Body       string
}

// NewNetworkError creates a NetworkError for a non-2xx response.
func NewNetworkError(method, url string, statusCode int, body string) *NetworkError {
	e := &NetworkError{
		baseError:  newBase(fmt.Sprintf("%s %s failed", method, url), nil),
		Method:     method,
		URL:        url,
		StatusCode: statusCode,
		Body:       body,
	}
	e.retryable = statusCode == 429 || statusCode >= 500
	return e
}

// NewTransportError creates a NetworkError for a request that did not complete.
func NewTransportError(method, url string, cause error) *NetworkError {
	e := &NetworkError{
		baseError: newBase(fmt.Sprintf("%s %s failed", method, url), cause),
		Method:    method,
		URL:       url,
	}
	e.retryable = true
	return e
}

// Error returns the formatted error message.
func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %d; body=%s", e.message, e.StatusCode, e.Body)
	}
	return e.baseError.Error()
}

// SerializationError is an event or submission that could not be encoded or decoded.
type SerializationError struct {
	baseError
	Kind string // "event" or "submission"
}

// NewSerializationError creates a new SerializationError.
func NewSerializationError(kind string, cause error) *SerializationError {
	return &SerializationError{
		baseError: newBase(fmt.Sprintf("failed to serialize %s", kind), cause),
		Kind:      kind,
	}
}

// Error returns the underlying message, which is what callers of the session
// surface expect to see.
func (e *SerializationError) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return e.message
}

// SessionError represents errors related to a bridged conversation.
type SessionError struct {
	baseError
	ConversationID string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{baseError: newBase(message, cause)}
}

// WithConversationID adds a conversation ID to the error context.
func (e *SessionError) WithConversationID(id string) *SessionError {
	e.ConversationID = id
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.ConversationID != "" {
		parts = append(parts, "conversation="+e.ConversationID)
	}
	return e.format("session error", parts)
}

// GitError represents errors related to git operations.
type GitError struct {
	baseError
	Repository string
	GitOutput  string
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{baseError: newBase(message, cause)}
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithGitOutput attaches captured git output.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Repository != "" {
		parts = append(parts, "repo="+e.Repository)
	}
	msg := e.format("git error", parts)
	if e.GitOutput != "" {
		msg += "\n" + e.GitOutput
	}
	return msg
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	e := &ValidationError{baseError: newBase(message, ErrInvalidInput)}
	e.severity = SeverityWarning
	return e
}

// WithField records the field that failed validation.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue records the offending value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.message)
	}
	return "validation error: " + e.message
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error is transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.IsRetryable()
	}
	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement BridgeError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.Severity()
	}
	return SeverityError
}

// StatusCode extracts the HTTP status code from a NetworkError, or 0.
func StatusCode(err error) int {
	var netErr *NetworkError
	if As(err, &netErr) {
		return netErr.StatusCode
	}
	return 0
}

// Wrap wraps an error with additional context message.
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

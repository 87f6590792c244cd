package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/Iron-Ham/taskbridge/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "cloud.base_url")
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
	levels := logging.ValidLevels()
	for i, level := range levels {
		levels[i] = strings.ToLower(level)
	}
	return levels
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validateCloud()...)
	errors = append(errors, c.validateAuth()...)
	errors = append(errors, c.validateEngine()...)
	errors = append(errors, c.validateLogging()...)
	return errors
}

func (c *Config) validateCloud() []ValidationError {
	var errors []ValidationError

	// The mock backend never dials out.
	if !c.Cloud.Mock {
		if msg := checkHTTPURL(c.Cloud.BaseURL); msg != "" {
			errors = append(errors, ValidationError{
				Field:   "cloud.base_url",
				Value:   c.Cloud.BaseURL,
				Message: msg,
			})
		}
	}

	if c.Cloud.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "cloud.timeout_seconds",
			Value:   c.Cloud.TimeoutSeconds,
			Message: "must be non-negative (0 disables the timeout)",
		})
	}

	if c.Cloud.ParallelQueries < 1 || c.Cloud.ParallelQueries > 32 {
		errors = append(errors, ValidationError{
			Field:   "cloud.parallel_queries",
			Value:   c.Cloud.ParallelQueries,
			Message: "must be between 1 and 32",
		})
	}

	return errors
}

func (c *Config) validateAuth() []ValidationError {
	var errors []ValidationError

	if c.Auth.RefreshURL != "" {
		if msg := checkHTTPURL(c.Auth.RefreshURL); msg != "" {
			errors = append(errors, ValidationError{
				Field:   "auth.refresh_url",
				Value:   c.Auth.RefreshURL,
				Message: msg,
			})
		}
	}

	if strings.ContainsAny(c.Auth.BearerToken, " \t\r\n") {
		errors = append(errors, ValidationError{
			Field:   "auth.bearer_token",
			Value:   "(redacted)",
			Message: "must not contain whitespace",
		})
	}

	return errors
}

func (c *Config) validateEngine() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Engine.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "engine.command",
			Value:   c.Engine.Command,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
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

// checkHTTPURL returns a message describing why raw is not an http(s) URL, or "".
func checkHTTPURL(raw string) string {
	if raw == "" {
		return "must not be empty"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "must be a valid URL"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "must use http or https"
	}
	if u.Host == "" {
		return "must include a host"
	}
	return ""
}

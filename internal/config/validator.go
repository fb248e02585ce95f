package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "server.origin")
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

// ValidThemes returns the list of valid TUI themes
func ValidThemes() []string {
	return []string{"default", "monokai", "dracula", "nord"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateTUI()...)
	errors = append(errors, c.validateStream()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.Origin == "" {
		errors = append(errors, ValidationError{
			Field:   "server.origin",
			Value:   c.Server.Origin,
			Message: "must not be empty",
		})
	} else if u, err := url.Parse(c.Server.Origin); err != nil || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "server.origin",
			Value:   c.Server.Origin,
			Message: "must be a valid URL with a host",
		})
	} else if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		errors = append(errors, ValidationError{
			Field:   "server.origin",
			Value:   c.Server.Origin,
			Message: "scheme must be http, https, ws, or wss",
		})
	}

	if c.Server.HeartbeatSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.heartbeat_seconds",
			Value:   c.Server.HeartbeatSeconds,
			Message: "must be non-negative",
		})
	}

	if c.Server.ReconnectSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.reconnect_seconds",
			Value:   c.Server.ReconnectSeconds,
			Message: "must be at least 1",
		})
	}

	if c.Server.RequestTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.request_timeout_seconds",
			Value:   c.Server.RequestTimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateTUI validates the TUIConfig
func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	if c.TUI.SidebarWidth < 20 || c.TUI.SidebarWidth > 60 {
		errors = append(errors, ValidationError{
			Field:   "tui.sidebar_width",
			Value:   c.TUI.SidebarWidth,
			Message: "must be between 20 and 60",
		})
	}

	if c.TUI.MaxOutputLines < 0 {
		errors = append(errors, ValidationError{
			Field:   "tui.max_output_lines",
			Value:   c.TUI.MaxOutputLines,
			Message: "must be non-negative",
		})
	}

	if c.TUI.LabelFilter != "" {
		if _, err := glob.Compile(c.TUI.LabelFilter); err != nil {
			errors = append(errors, ValidationError{
				Field:   "tui.label_filter",
				Value:   c.TUI.LabelFilter,
				Message: "must be a valid glob pattern",
			})
		}
	}

	if c.TUI.Theme != "" && !slices.Contains(ValidThemes(), c.TUI.Theme) {
		errors = append(errors, ValidationError{
			Field:   "tui.theme",
			Value:   c.TUI.Theme,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidThemes(), ", ")),
		})
	}

	return errors
}

// validateStream validates the StreamConfig
func (c *Config) validateStream() []ValidationError {
	var errors []ValidationError

	if c.Stream.ReopenSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "stream.reopen_seconds",
			Value:   c.Stream.ReopenSeconds,
			Message: "must be at least 1",
		})
	}

	if c.Stream.Window < 100 {
		errors = append(errors, ValidationError{
			Field:   "stream.window",
			Value:   c.Stream.Window,
			Message: "must be at least 100",
		})
	}

	if c.Stream.BacklogLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "stream.backlog_limit",
			Value:   c.Stream.BacklogLimit,
			Message: "must be non-negative",
		})
	}

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

	return errors
}

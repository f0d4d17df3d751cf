// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - unified error handling for CLI commands.
//
// Commands always return errors; main decides how to display them and
// which exit code to use.
package cli

import (
	"errors"
	"fmt"
	"os"

	"queryquant/internal/chat"
	"queryquant/internal/provider"
	"queryquant/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a missing or rejected API key
	ExitAuthError = 4
	// ExitNetworkError indicates a network or provider error
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // command that failed (e.g. "sessions")
	Action  string // action being performed (e.g. "export")
	Reason  string // human-readable reason
	Err     error  // underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError marks a bad invocation; main prints usage alongside it.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// usageErrorf builds a UsageError.
func usageErrorf(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsageError
	}
	if errors.Is(err, provider.ErrNotConfigured) || errors.Is(err, provider.ErrAuthFailed) {
		return ExitAuthError
	}
	if errors.Is(err, provider.ErrRateLimited) {
		return ExitNetworkError
	}
	if storage.IsNotFound(err) || errors.Is(err, chat.ErrNoSession) {
		return ExitNotFoundError
	}
	return ExitGeneralError
}

// PrintError writes an error to stderr in a consistent format.
func PrintError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

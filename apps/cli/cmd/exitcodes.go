package cmd

import (
	"errors"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// Exit codes for the courier CLI
const (
	// ExitSuccess indicates every request settled and every check passed
	ExitSuccess = 0

	// ExitCheckFailure indicates a failed assertion, status or threshold
	ExitCheckFailure = 1

	// ExitParseError indicates an unreadable request file or curl command
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError attaches an exit code to an error. A nil err exits silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withExit(code int, err error) error {
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if e, ok := courier.AsError(err); ok && e.Kind == courier.KindTransport {
		return ExitNetworkError
	}
	return ExitCheckFailure
}

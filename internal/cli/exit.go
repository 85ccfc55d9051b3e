package cli

import (
	"errors"
	"fmt"
)

// Exit codes. Anything short of a fully passing run exits 1.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// ExitError carries the process exit code out of a command. Usage marks
// errors raised before any request was sent (bad flags, config, contract).
type ExitError struct {
	Code    int
	Message string
	Err     error
	Usage   bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// UsageError reports a usage or configuration problem.
func UsageError(message string, err error) *ExitError {
	return &ExitError{Code: ExitFailure, Message: message, Err: err, Usage: true}
}

// IsUsage reports whether err is a usage or configuration error.
func IsUsage(err error) bool {
	var ee *ExitError
	return errors.As(err, &ee) && ee.Usage
}

// ExitCode maps err to a process exit code. Errors that are not an
// ExitError count as failures.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitFailure
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	syncerrors "github.com/trade-history-sync/internal/errors"
	"github.com/trade-history-sync/internal/types"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Synchronization or feed failure (rate limit, expired session, ...)
	ExitCommandError = 2 // Command error (bad configuration, store unavailable, ...)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported is set when the error was already written to the output
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// IsReported reports whether err was already written by an OutputFormatter.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// Response mirrors the API envelope so scripts can treat both alike.
type Response struct {
	OK     bool                `json:"ok"`
	Result interface{}         `json:"result,omitempty"`
	Error  *types.ServiceError `json:"error,omitempty"`
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics, kept off Writer so JSON stays parseable
	Verbose   bool
}

// Success outputs result. In text mode render writes the human form.
func (f *OutputFormatter) Success(result interface{}, render func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{OK: true, Result: result})
	}
	render(f.Writer)
	return nil
}

// Failure reports a service error and returns it as an ExitFailure.
func (f *OutputFormatter) Failure(err error) error {
	se := syncerrors.Categorize(err).ToServiceError()

	if f.Format == "json" {
		if encErr := json.NewEncoder(f.Writer).Encode(Response{OK: false, Error: se}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(f.ErrWriter, "Error [%s]: %s\n", se.Code, se.Message)
		if f.Verbose && len(se.Meta) > 0 {
			fmt.Fprintf(f.ErrWriter, "Details: %v\n", se.Meta)
		}
	}
	return &ExitError{Code: ExitFailure, Message: string(se.Code), Err: err, Reported: true}
}

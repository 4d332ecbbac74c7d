package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes of the cayenne command.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // validation found errors
	ExitCommandError = 2 // bad arguments, unreadable files, database errors
)

// ExitError is an error with the exit code the process should end with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code for err. Errors that are not an
// ExitError map to ExitCommandError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// Response is the JSON envelope of every command output.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// formatter writes command results as text or JSON.
type formatter struct {
	format string
	out    io.Writer
	err    io.Writer
	debug  bool
}

// result writes data. In text mode text is called to render it.
func (f *formatter) result(data any, text func(w io.Writer)) error {
	if f.format == "json" {
		return f.encode(Response{Status: "ok", Data: data})
	}
	text(f.out)
	return nil
}

// failure writes data as a failed result and returns an ExitError.
func (f *formatter) failure(code int, message string, data any, text func(w io.Writer)) error {
	if f.format == "json" {
		if err := f.encode(Response{Status: "error", Data: data, Error: message}); err != nil {
			return err
		}
	} else {
		text(f.out)
	}
	return &ExitError{Code: code, Message: message}
}

func (f *formatter) encode(v any) error {
	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *formatter) verbosef(format string, args ...any) {
	if f.debug {
		fmt.Fprintf(f.err, format+"\n", args...)
	}
}

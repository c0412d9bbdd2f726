package cmd

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hityaml/packages/core/runner"
)

// Exit codes for hityaml CLI
const (
	// ExitSuccess indicates all tests passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more tests failed
	ExitTestFailure = 1

	// ExitParseError indicates a file parsing error
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries the exit code a command finished with. A nil err
// means the outcome was already reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit status " + strconv.Itoa(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

func usageError(err error) error {
	return exitWith(ExitUsageError, err)
}

// loadError picks the exit code for an error returned while loading a file:
// an unknown base URI name is a configuration problem, anything else means
// the document could not be read, parsed or validated.
func loadError(err error) error {
	if errors.Is(err, runner.ErrUnknownURI) {
		return exitWith(ExitConfigError, err)
	}
	return exitWith(ExitParseError, err)
}

// minArgs is cobra.MinimumNArgs reported as a usage error.
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

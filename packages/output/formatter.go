package output

import (
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/hityaml/packages/core/runner"
)

// Formatter interface for all output formatters
type Formatter interface {
	FormatHeader(version string)
	FormatResult(result *runner.RunResult)
	FormatError(err error)
}

// Flushable is implemented by formatters that write once all files ran.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Options are shared by New.
type Options struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
}

// New returns the formatter registered under name.
func New(name string, opts Options) (Formatter, error) {
	switch name {
	case "", "console":
		consoleOpts := []ConsoleOption{WithVerbose(opts.Verbose), WithNoColor(opts.NoColor)}
		if opts.Writer != nil {
			consoleOpts = append(consoleOpts, WithWriter(opts.Writer))
		}
		return NewConsoleFormatter(consoleOpts...), nil
	case "json":
		var jsonOpts []JSONOption
		if opts.Writer != nil {
			jsonOpts = append(jsonOpts, JSONWithWriter(opts.Writer))
		}
		return NewJSONFormatter(jsonOpts...), nil
	case "junit":
		var junitOpts []JUnitOption
		if opts.Writer != nil {
			junitOpts = append(junitOpts, JUnitWithWriter(opts.Writer))
		}
		return NewJUnitFormatter(junitOpts...), nil
	case "tap":
		var tapOpts []TAPOption
		if opts.Writer != nil {
			tapOpts = append(tapOpts, TAPWithWriter(opts.Writer))
		}
		return NewTAPFormatter(tapOpts...), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", name)
	}
}

// failureLines returns one line per failure of r.
func failureLines(r *runner.RequestResult) []string {
	lines := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		lines = append(lines, err.Error())
	}
	return lines
}

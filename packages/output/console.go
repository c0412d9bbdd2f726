package output

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/abdul-hamid-achik/hityaml/packages/core/runner"
	"github.com/fatih/color"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Running: "+result.File))
	if result.BaseURI != "" {
		fmt.Fprintf(f.writer, "%s\n", faint("Base:    "+result.BaseURI))
	}

	group := ""
	for i, r := range result.Results {
		if i == 0 || r.Group != group {
			group = r.Group
			fmt.Fprintf(f.writer, "\n  %s\n", bold(group))
		}

		if r.Skipped {
			fmt.Fprintf(f.writer, "    %s %s", yellow("-"), r.Name)
			if r.SkipReason != "" && r.SkipReason != "filtered out" {
				fmt.Fprintf(f.writer, " (%s)", r.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		}

		if r.Response == nil {
			fmt.Fprintf(f.writer, "    %s %s %s\n", red("x"), r.Name, red(fmt.Sprintf("(%v)", r.Error)))
			continue
		}

		symbol := green("✓")
		if !r.Passed {
			symbol = red("✗")
		}

		fmt.Fprintf(f.writer, "    %s %s %s\n", symbol, r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

		if f.verbose {
			fmt.Fprintf(f.writer, "      %s %s -> %d\n", r.Request.Method, r.Request.URL, r.Response.StatusCode)
		}

		if !r.Passed {
			f.writeFailures(r)
		}

		if f.verbose && len(r.Captures) > 0 {
			fmt.Fprintf(f.writer, "      Captures:\n")
			for _, c := range r.Captures {
				fmt.Fprintf(f.writer, "        %s = %s (%s)\n", strings.Join(c.Cells, ", "), formatValue(c.Value, 80), c.Path)
			}
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Tests: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	total := result.Passed + result.Failed + result.Skipped
	fmt.Fprintf(f.writer, "%d total\n", total)
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
	if f.verbose && result.Latency.Count > 0 {
		l := result.Latency
		fmt.Fprintf(f.writer, "Latency: p50 %v, p95 %v, p99 %v, max %v\n", l.P50, l.P95, l.P99, l.Max)
	}
	if f.verbose && len(result.Variables) > 0 {
		fmt.Fprintf(f.writer, "Variables:\n")
		for _, name := range slices.Sorted(maps.Keys(result.Variables)) {
			fmt.Fprintf(f.writer, "  %s = %s\n", name, formatValue(result.Variables[name], 80))
		}
	}
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) writeFailures(r *runner.RequestResult) {
	red := color.New(color.FgRed).SprintFunc()

	for _, a := range r.Assertions {
		if a.Passed {
			continue
		}
		fmt.Fprintf(f.writer, "      %s %s\n", red("→"), a.Message)
		if a.Err == nil && f.verbose {
			fmt.Fprintf(f.writer, "        Expected: %s\n", formatValue(a.Expected, 100))
			fmt.Fprintf(f.writer, "        Actual:   %s\n", formatValue(a.Actual, 100))
		}
		if a.Diff != "" {
			for _, line := range strings.Split(strings.TrimRight(a.Diff, "\n"), "\n") {
				fmt.Fprintf(f.writer, "        %s\n", colorDiffLine(line))
			}
		}
	}

	// failures that are not check results, e.g. takes
	failed := 0
	for _, a := range r.Assertions {
		if !a.Passed {
			failed++
		}
	}
	if failed < len(r.Errors) {
		for _, err := range r.Errors[failed:] {
			fmt.Fprintf(f.writer, "      %s %v\n", red("→"), err)
		}
	}
}

func colorDiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return color.New(color.Bold).Sprint(line)
	case strings.HasPrefix(line, "+"):
		return color.New(color.FgGreen).Sprint(line)
	case strings.HasPrefix(line, "-"):
		return color.New(color.FgRed).Sprint(line)
	case strings.HasPrefix(line, "@@"):
		return color.New(color.FgCyan).Sprint(line)
	default:
		return line
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hityaml"), version)
}

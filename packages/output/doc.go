// Package output provides formatters for displaying run results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output, grouped by test group
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration, one testsuite per group
//   - TAP: Test Anything Protocol format
//
// Each formatter implements the Formatter interface and can optionally
// implement Flushable for formats that accumulate results before output.
package output

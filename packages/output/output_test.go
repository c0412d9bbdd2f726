package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hityaml/packages/assertions"
	"github.com/abdul-hamid-achik/hityaml/packages/capture"
	"github.com/abdul-hamid-achik/hityaml/packages/core/runner"
	"github.com/abdul-hamid-achik/hityaml/packages/http"
)

func sampleRun() *runner.RunResult {
	failed := &assertions.Result{
		Passed:   false,
		Subject:  "status",
		Operator: "status",
		Expected: 200,
		Actual:   404,
		Message:  "expected status 200, got 404",
	}

	return &runner.RunResult{
		ID:        uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		File:      "api.yaml",
		BaseURI:   "http://localhost:8080",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:  40 * time.Millisecond,
		Passed:    1,
		Failed:    2,
		Skipped:   1,
		Latency: runner.LatencySummary{
			Count: 2, Min: 5 * time.Millisecond, Max: 20 * time.Millisecond,
			Mean: 12 * time.Millisecond, P50: 5 * time.Millisecond,
			P95: 20 * time.Millisecond, P99: 20 * time.Millisecond,
		},
		Variables: map[string]any{"userId": json.Number("1234567890123456789"), "token": "abc"},
		Results: []*runner.RequestResult{
			{
				Group:    "auth",
				Name:     "POST /login",
				State:    runner.StatePassed,
				Passed:   true,
				Duration: 5 * time.Millisecond,
				Request:  &http.Request{Method: "POST", URL: "http://localhost:8080/login"},
				Response: &http.Response{StatusCode: 200, Status: "200 OK"},
				Captures: []capture.Captured{{Path: "token", Cells: []string{"token"}, Value: "abc"}},
			},
			{
				Group:      "users",
				Name:       "GET /users",
				State:      runner.StateFailed,
				Duration:   20 * time.Millisecond,
				Request:    &http.Request{Method: "GET", URL: "http://localhost:8080/users"},
				Response:   &http.Response{StatusCode: 404, Status: "404 Not Found"},
				Assertions: []*assertions.Result{failed},
				Errors:     []error{failed.Failure()},
				Error:      failed.Failure(),
			},
			{
				Group:  "users",
				Name:   "DELETE /users/1",
				State:  runner.StateFailed,
				Errors: []error{errors.New("connection refused")},
				Error:  errors.New("connection refused"),
			},
			{
				Group:      "users",
				Name:       "GET /users/2",
				State:      runner.StateSkipped,
				Skipped:    true,
				SkipReason: "bail: an earlier unit failed",
			},
		},
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "console", "json", "junit", "tap"} {
		f, err := New(name, Options{Writer: &bytes.Buffer{}})
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}

	_, err := New("html", Options{})
	assert.ErrorContains(t, err, `unknown output format "html"`)

	f, _ := New("console", Options{})
	_, ok := f.(Flushable)
	assert.False(t, ok, "console writes as it goes")
	f, _ = New("json", Options{})
	_, ok = f.(Flushable)
	assert.True(t, ok)
}

func TestConsoleFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))
	f.FormatResult(sampleRun())
	out := buf.String()

	assert.Contains(t, out, "Running: api.yaml")
	assert.Contains(t, out, "  auth\n")
	assert.Contains(t, out, "  users\n")
	assert.Contains(t, out, "✓ POST /login")
	assert.Contains(t, out, "✗ GET /users")
	assert.Contains(t, out, "expected status 200, got 404")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "bail: an earlier unit failed")
	assert.Contains(t, out, "token = abc (token)")
	assert.Contains(t, out, "1 passed")
	assert.Contains(t, out, "2 failed")
	assert.Contains(t, out, "4 total")
	assert.Contains(t, out, "Latency: p50 5ms")
	assert.Contains(t, out, "Variables:\n  token = abc\n  userId = 1234567890123456789\n")

	// group header printed once per run of units
	assert.Equal(t, 1, strings.Count(out, "  users\n"))
}

func TestConsoleFormatter_Quiet(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatResult(sampleRun())

	assert.NotContains(t, buf.String(), "Captures:")
	assert.NotContains(t, buf.String(), "Latency:")
	assert.NotContains(t, buf.String(), "Variables:")
}

func TestConsoleFormatter_Diff(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	r := &assertions.Result{Message: "body mismatch", Diff: "--- expected\n+++ actual\n-a\n+b\n"}
	f.writeFailures(&runner.RequestResult{Assertions: []*assertions.Result{r}, Errors: []error{r.Failure()}})

	out := buf.String()
	assert.Contains(t, out, "body mismatch")
	assert.Contains(t, out, "-a")
	assert.Contains(t, out, "+b")
	// the diff is not printed a second time from Errors
	assert.Equal(t, 1, strings.Count(out, "body mismatch"))
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	f.FormatResult(sampleRun())
	require.NoError(t, f.Flush(time.Second))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, JSONSummary{Total: 4, Passed: 1, Failed: 2, Skipped: 1}, out.Summary)
	require.Len(t, out.Runs, 1)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", out.Runs[0].ID)
	assert.Equal(t, "http://localhost:8080", out.Runs[0].BaseURI)
	require.NotNil(t, out.Runs[0].Latency)
	assert.Equal(t, 20.0, out.Runs[0].Latency.P95)

	require.Len(t, out.Tests, 4)
	assert.Equal(t, "auth", out.Tests[0].Group)
	assert.Equal(t, "passed", out.Tests[0].State)
	require.Len(t, out.Tests[0].Captures, 1)
	assert.Equal(t, "abc", out.Tests[0].Captures[0].Value)

	assert.False(t, out.Tests[1].Passed)
	assert.Equal(t, "expected status 200, got 404", out.Tests[1].Error)
	require.Len(t, out.Tests[1].Assertions, 1)
	assert.Equal(t, float64(404), out.Tests[1].Assertions[0].Actual)

	assert.Equal(t, "bail: an earlier unit failed", out.Tests[3].SkipReason)
	assert.Equal(t, 1000.0, out.Duration)
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))
	f.FormatResult(sampleRun())
	require.NoError(t, f.Flush(time.Second))

	require.True(t, strings.HasPrefix(buf.String(), "<?xml"))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))

	assert.Equal(t, "hityaml", suites.Name)
	assert.Equal(t, 4, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Errors)
	assert.Equal(t, 1, suites.Skipped)

	require.Len(t, suites.TestSuites, 2)
	assert.Equal(t, "api.yaml > auth", suites.TestSuites[0].Name)
	assert.Equal(t, "api.yaml > users", suites.TestSuites[1].Name)

	users := suites.TestSuites[1].TestCases
	require.Len(t, users, 3)
	require.NotNil(t, users[0].Failure)
	assert.Contains(t, users[0].Failure.Content, "expected status 200, got 404")
	require.NotNil(t, users[1].Error)
	assert.Equal(t, "connection refused", users[1].Error.Message)
	require.NotNil(t, users[2].Skipped)
}

func TestTAPFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))
	f.FormatResult(sampleRun())
	require.NoError(t, f.Flush(time.Second))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "TAP version 13\n1..4\n"))
	assert.Contains(t, out, "ok 1 - auth > POST /login\n")
	assert.Contains(t, out, "not ok 2 - users > GET /users\n")
	assert.Contains(t, out, "  severity: fail\n")
	assert.Contains(t, out, "  status: 404\n")
	assert.Contains(t, out, "expected status 200, got 404")
	assert.Contains(t, out, "not ok 3 - users > DELETE /users/1\n")
	assert.Contains(t, out, "  message: connection refused\n")
	assert.Contains(t, out, "ok 4 - users > GET /users/2 # SKIP bail: an earlier unit failed\n")
}

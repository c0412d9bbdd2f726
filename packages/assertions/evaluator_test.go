package assertions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hityaml/packages/core/cell"
	"github.com/abdul-hamid-achik/hityaml/packages/core/parser"
	"github.com/abdul-hamid-achik/hityaml/packages/core/value"
	"github.com/abdul-hamid-achik/hityaml/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createResponse(statusCode int, body string, headers map[string]string) *http.Response {
	if headers == nil {
		headers = make(map[string]string)
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}
	return &http.Response{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       []byte(body),
		Duration:   100 * time.Millisecond,
	}
}

func match(path string, expected any) *Check {
	return &Check{Kind: CheckMatch, Path: value.MustParsePath(path), Expected: expected}
}

func TestCompile_Order(t *testing.T) {
	exp := &parser.Expectation{
		Status:      200,
		ContentType: "application/json",
		Headers:     []*parser.Param{{Key: "X-Request-Id", Value: "1"}},
		Body: &parser.BodyExpectation{
			Is:        map[string]any{"ok": true},
			HasIs:     true,
			Matches:   []*parser.Match{{Path: value.MustParsePath("ok"), Expected: true}},
			Schema:    map[string]any{"type": "object"},
			HasSchema: true,
			Take:      []*parser.Take{{Path: value.MustParsePath("ok")}},
		},
	}

	plan := Compile(exp)
	kinds := make([]CheckKind, len(plan.Checks))
	for i, c := range plan.Checks {
		kinds[i] = c.Kind
	}
	assert.Equal(t, []CheckKind{CheckStatus, CheckContentType, CheckBodyIs, CheckMatch, CheckSchema, CheckHeader}, kinds)
	assert.Len(t, plan.Takes, 1)
	assert.Empty(t, Compile(nil).Checks)
}

func TestEvaluator_Status(t *testing.T) {
	e := NewEvaluator(createResponse(404, `{}`, nil))

	result := e.Evaluate(&Check{Kind: CheckStatus, Expected: 404})
	assert.True(t, result.Passed)
	assert.Equal(t, 404, result.Actual)

	result = e.Evaluate(&Check{Kind: CheckStatus, Expected: 200})
	assert.False(t, result.Passed)
	assert.Equal(t, "expected status 200, got 404", result.Message)

	var failure *ExpectationFailure
	require.True(t, errors.As(result.Failure(), &failure))
	assert.Equal(t, "status", failure.Check)
}

func TestEvaluator_ContentType(t *testing.T) {
	resp := createResponse(200, `{}`, map[string]string{"Content-Type": "Application/JSON; charset=utf-8"})
	e := NewEvaluator(resp)

	assert.True(t, e.Evaluate(&Check{Kind: CheckContentType, Expected: "application/json"}).Passed)
	assert.False(t, e.Evaluate(&Check{Kind: CheckContentType, Expected: "text/html"}).Passed)

	missing := NewEvaluator(&http.Response{StatusCode: 204, Headers: map[string]string{}})
	result := missing.Evaluate(&Check{Kind: CheckContentType, Expected: "application/json"})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "no Content-Type")
}

func TestEvaluator_BodyIs(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		ct       string
		expected any
		passed   bool
	}{
		{"object equal", `{"a": 1, "b": [1, 2]}`, "application/json", map[string]any{"b": []any{1, 2}, "a": 1}, true},
		{"object differs", `{"a": 1}`, "application/json", map[string]any{"a": 2}, false},
		{"array equal", `[1, "x"]`, "application/json", []any{1, "x"}, true},
		{"null with empty body", ``, "", nil, true},
		{"null with json null", `null`, "application/json", nil, true},
		{"null with object", `{}`, "application/json", nil, false},
		{"string plain text", `pong`, "text/plain", "pong", true},
		{"string as json text", `{"a":1}`, "application/json", `{"a": 1}`, true},
		{"string differs", `pong`, "text/plain", "ping", false},
		{"number strict", `42`, "application/json", 42, true},
		{"number against string body", `"42"`, "application/json", 42, false},
		{"bool strict", `true`, "application/json", true, true},
		{"bool mismatch", `false`, "application/json", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := createResponse(200, tt.body, map[string]string{"Content-Type": tt.ct})
			result := NewEvaluator(resp).Evaluate(&Check{Kind: CheckBodyIs, Expected: tt.expected})
			assert.Equal(t, tt.passed, result.Passed, result.Message)
		})
	}
}

func TestEvaluator_BodyIsDiff(t *testing.T) {
	resp := createResponse(200, `{"name": "bob"}`, nil)
	result := NewEvaluator(resp).Evaluate(&Check{Kind: CheckBodyIs, Expected: map[string]any{"name": "alice"}})

	require.False(t, result.Passed)
	assert.Contains(t, result.Diff, `-  "name": "alice"`)
	assert.Contains(t, result.Diff, `+  "name": "bob"`)
	assert.Contains(t, result.Failure().Error(), result.Diff)
}

func TestEvaluator_Matches(t *testing.T) {
	resp := createResponse(200, `{"user": {"id": 42, "name": "John", "tags": ["a", "b"], "manager": null}}`, nil)
	e := NewEvaluator(resp)

	assert.True(t, e.Evaluate(match("user.id", 42)).Passed)
	assert.True(t, e.Evaluate(match("user.tags[1]", "b")).Passed)
	assert.True(t, e.Evaluate(match("user.tags", []any{"a", "b"})).Passed)
	assert.True(t, e.Evaluate(match("user.manager", nil)).Passed)
	assert.False(t, e.Evaluate(match("user.id", "42")).Passed)

	result := e.Evaluate(match("user.email", nil))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "not found")

	result = e.Evaluate(match("user.name", "Jane"))
	assert.False(t, result.Passed)
	assert.Equal(t, "body.user.name", result.Subject)
	assert.Equal(t, `body.user.name: expected "Jane", got "John"`, result.Message)
}

func TestEvaluator_MissingBodyFailsBodyChecks(t *testing.T) {
	resp := createResponse(204, ``, map[string]string{"Content-Type": ""})
	e := NewEvaluator(resp)

	for _, c := range []*Check{
		match("id", 1),
		{Kind: CheckBodyIs, Expected: map[string]any{}},
		{Kind: CheckSchema, Expected: map[string]any{"type": "object"}},
	} {
		result := e.Evaluate(c)
		assert.False(t, result.Passed, c.Subject())
		assert.Contains(t, result.Message, "no body")
	}
}

func TestEvaluator_Headers(t *testing.T) {
	resp := createResponse(200, `{}`, map[string]string{"X-Request-Id": "abc", "X-Count": "5"})
	e := NewEvaluator(resp)

	assert.True(t, e.Evaluate(&Check{Kind: CheckHeader, Header: "x-request-id", Expected: "abc"}).Passed)
	assert.True(t, e.Evaluate(&Check{Kind: CheckHeader, Header: "X-Count", Expected: 5}).Passed)
	assert.True(t, e.Evaluate(&Check{Kind: CheckHeader, Header: "X-Absent", Expected: nil}).Passed)
	assert.False(t, e.Evaluate(&Check{Kind: CheckHeader, Header: "X-Request-Id", Expected: "ABC"}).Passed)

	result := e.Evaluate(&Check{Kind: CheckHeader, Header: "X-Missing", Expected: "x"})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "not sent")
}

func TestEvaluator_Variables(t *testing.T) {
	store := cell.NewStore()
	id := store.Declare("userId")
	resp := createResponse(200, `{"id": 7, "owner": {"id": 7}}`, nil)
	e := NewEvaluator(resp, WithCells(store))

	result := e.Evaluate(match("id", id))
	assert.False(t, result.Passed)
	assert.True(t, errors.Is(result.Failure(), cell.ErrUndefinedVariable))

	store.Set(id, float64(7))
	assert.True(t, e.Evaluate(match("id", id)).Passed)
	assert.True(t, e.Evaluate(match("owner", map[string]any{"id": id})).Passed)
}

func TestEvaluator_SchemaInline(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"id", "name"},
		"properties": map[string]any{
			"id":   map[string]any{"type": "integer"},
			"name": map[string]any{"type": "string"},
		},
	}

	ok := NewEvaluator(createResponse(200, `{"id": 1, "name": "x"}`, nil))
	assert.True(t, ok.Evaluate(&Check{Kind: CheckSchema, Expected: schema}).Passed)

	bad := NewEvaluator(createResponse(200, `{"id": "1"}`, nil))
	result := bad.Evaluate(&Check{Kind: CheckSchema, Expected: schema})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "validation failed")
}

func TestEvaluator_SchemaFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.json"), []byte(`{"type": "object", "required": ["id"]}`), 0o644))

	e := NewEvaluator(createResponse(200, `{"id": 1}`, nil), WithBaseDir(dir))
	assert.True(t, e.Evaluate(&Check{Kind: CheckSchema, Expected: "user.json"}).Passed)

	result := e.Evaluate(&Check{Kind: CheckSchema, Expected: "../outside.json"})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "path traversal")
}

func TestEvaluateAll_ContinuesPastFailures(t *testing.T) {
	resp := createResponse(500, `{"error": "boom"}`, nil)
	plan := &Plan{Checks: []*Check{
		{Kind: CheckStatus, Expected: 200},
		match("error", "boom"),
		match("missing", 1),
	}}

	results := NewEvaluator(resp).EvaluateAll(plan)
	require.Len(t, results, 3)
	assert.False(t, results[0].Passed)
	assert.True(t, results[1].Passed)
	assert.False(t, results[2].Passed)

	assert.NoError(t, results[1].Failure())
	err := results[0].Failure()
	require.Error(t, err)
	assert.Equal(t, "expected status 200, got 500", err.Error())
}

func TestValidatePathWithinBase(t *testing.T) {
	assert.NoError(t, validatePathWithinBase("/home/user/project/file.json", "/home/user/project"))
	assert.Error(t, validatePathWithinBase("/home/user/project/../../../etc/passwd", "/home/user/project"))
	assert.NoError(t, validatePathWithinBase("/any/path", ""))
}

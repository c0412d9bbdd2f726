package assertions

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/hityaml/packages/core/cell"
	"github.com/abdul-hamid-achik/hityaml/packages/core/value"
	"github.com/abdul-hamid-achik/hityaml/packages/http"
	"github.com/xeipuuv/gojsonschema"
)

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
	// Diff is a unified diff of expected against actual for structured values.
	Diff string
	// Err is set when the check could not be evaluated, e.g. an unset variable.
	Err error
}

// Failure returns the result as an error, or nil if it passed.
func (r *Result) Failure() error {
	if r.Passed {
		return nil
	}
	if r.Err != nil {
		return r.Err
	}
	return &ExpectationFailure{
		Check:    r.Operator,
		Path:     r.Subject,
		Expected: r.Expected,
		Actual:   r.Actual,
		Message:  r.Message,
		Diff:     r.Diff,
	}
}

// ExpectationFailure is a single check mismatch.
type ExpectationFailure struct {
	Check    string
	Path     string
	Expected any
	Actual   any
	Message  string
	Diff     string
}

func (f *ExpectationFailure) Error() string {
	if f.Diff == "" {
		return f.Message
	}
	return f.Message + "\n" + f.Diff
}

type Evaluator struct {
	response *http.Response
	body     value.Body
	cells    *cell.Store
	baseDir  string // Base directory for resolving schema file paths
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithCells sets the store variables in expected values are read from.
func WithCells(store *cell.Store) EvaluatorOption {
	return func(e *Evaluator) {
		e.cells = store
	}
}

// WithBaseDir sets the directory schema files are resolved against.
func WithBaseDir(dir string) EvaluatorOption {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

func NewEvaluator(resp *http.Response, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		response: resp,
		body:     resp.ParsedBody(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cells == nil {
		e.cells = cell.NewStore()
	}
	return e
}

// EvaluateAll runs every check of plan in order.
func (e *Evaluator) EvaluateAll(plan *Plan) []*Result {
	results := make([]*Result, 0, len(plan.Checks))
	for _, c := range plan.Checks {
		results = append(results, e.Evaluate(c))
	}
	return results
}

func (e *Evaluator) Evaluate(c *Check) *Result {
	result := &Result{
		Subject:  c.Subject(),
		Operator: string(c.Kind),
		Expected: c.Expected,
	}

	expected, err := value.Of(c.Expected).Bind(e.cells)
	if err != nil {
		result.Err = fmt.Errorf("%s: %w", result.Subject, err)
		result.Message = result.Err.Error()
		return result
	}
	result.Expected = expected.Value()

	if c.Kind.isBody() && !e.body.Present && !(c.Kind == CheckBodyIs && expected.Kind() == value.KindNull) {
		result.Message = fmt.Sprintf("%s: expected %s, but the response has no body", result.Subject, value.Describe(result.Expected))
		return result
	}

	switch c.Kind {
	case CheckStatus:
		e.status(result, expected)
	case CheckContentType:
		e.contentType(result, expected)
	case CheckBodyIs:
		e.bodyIs(result, expected)
	case CheckMatch:
		e.match(result, c.Path, expected)
	case CheckSchema:
		e.schema(result, expected)
	case CheckHeader:
		e.header(result, c.Header, expected)
	default:
		result.Message = fmt.Sprintf("unknown check %q", c.Kind)
	}
	return result
}

func (e *Evaluator) status(r *Result, expected value.Expected) {
	r.Actual = e.response.StatusCode
	r.Passed = expected.Matches(e.response.StatusCode, true)
	if !r.Passed {
		r.Message = fmt.Sprintf("expected status %s, got %d", value.Scalar(r.Expected), e.response.StatusCode)
	}
}

func (e *Evaluator) contentType(r *Result, expected value.Expected) {
	want := http.MediaType(value.Scalar(expected.Value()))
	got, ok := e.response.Header("Content-Type")
	if !ok {
		r.Message = fmt.Sprintf("expected content-type %s, but no Content-Type header was sent", want)
		return
	}
	r.Actual = got
	r.Passed = strings.EqualFold(http.MediaType(got), want)
	if !r.Passed {
		r.Message = fmt.Sprintf("expected content-type %s, got %s", want, got)
	}
}

func (e *Evaluator) bodyIs(r *Result, expected value.Expected) {
	r.Actual = e.body.Value
	r.Passed = expected.Matches(e.body.Value, e.body.Present)
	if !r.Passed {
		r.Message = fmt.Sprintf("body: expected %s, got %s", value.Describe(r.Expected), describeBody(e.body))
		r.Diff = value.Diff(r.Expected, e.body.Value)
	}
}

func (e *Evaluator) match(r *Result, path value.Path, expected value.Expected) {
	actual, found := e.body.Lookup(path)
	if !found {
		r.Message = fmt.Sprintf("%s: expected %s, but the path was not found", r.Subject, value.Describe(r.Expected))
		return
	}
	r.Actual = actual
	r.Passed = expected.Matches(actual, true)
	if !r.Passed {
		r.Message = fmt.Sprintf("%s: expected %s, got %s", r.Subject, value.Describe(r.Expected), value.Describe(actual))
		r.Diff = value.Diff(r.Expected, actual)
	}
}

func (e *Evaluator) header(r *Result, name string, expected value.Expected) {
	got, ok := e.response.Header(name)
	if expected.Kind() == value.KindNull {
		r.Passed = !ok
		if ok {
			r.Actual = got
			r.Message = fmt.Sprintf("header %s: expected no header, got %q", name, got)
		}
		return
	}

	want := value.Scalar(expected.Value())
	if !ok {
		r.Message = fmt.Sprintf("header %s: expected %q, but it was not sent", name, want)
		return
	}
	r.Actual = got
	r.Passed = got == want
	if !r.Passed {
		r.Message = fmt.Sprintf("header %s: expected %q, got %q", name, want, got)
	}
}

func (e *Evaluator) schema(r *Result, expected value.Expected) {
	if !e.body.JSON {
		r.Message = "body.schema: the response body is not JSON"
		return
	}

	loader, err := e.schemaLoader(expected.Value())
	if err != nil {
		r.Message = fmt.Sprintf("body.schema: %v", err)
		return
	}

	res, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader(e.body.Raw))
	if err != nil {
		r.Message = fmt.Sprintf("body.schema: schema validation error: %v", err)
		return
	}

	r.Actual = e.body.Value
	if res.Valid() {
		r.Passed = true
		return
	}

	var errs []string
	for _, desc := range res.Errors() {
		errs = append(errs, desc.String())
	}
	r.Message = fmt.Sprintf("body.schema: validation failed: %s", strings.Join(errs, "; "))
}

// schemaLoader accepts an inline schema mapping, an inline JSON string, or a
// path to a schema file relative to the suite.
func (e *Evaluator) schemaLoader(schema any) (gojsonschema.JSONLoader, error) {
	switch s := schema.(type) {
	case map[string]any:
		return gojsonschema.NewGoLoader(value.Normalize(s)), nil
	case string:
		if strings.HasPrefix(strings.TrimSpace(s), "{") {
			return gojsonschema.NewStringLoader(s), nil
		}
		schemaPath := s
		if !filepath.IsAbs(schemaPath) && e.baseDir != "" {
			schemaPath = filepath.Join(e.baseDir, schemaPath)
		}
		if err := validatePathWithinBase(schemaPath, e.baseDir); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(schemaPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file: %w", err)
		}
		return gojsonschema.NewBytesLoader(data), nil
	default:
		return nil, fmt.Errorf("schema must be a mapping or a file path, got %s", value.TypeName(schema))
	}
}

func describeBody(b value.Body) string {
	if !b.Present {
		return "no body"
	}
	return value.Describe(b.Value)
}

// validatePathWithinBase checks that the resolved path stays within the base directory
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}


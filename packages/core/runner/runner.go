package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hityaml/packages/assertions"
	"github.com/abdul-hamid-achik/hityaml/packages/capture"
	"github.com/abdul-hamid-achik/hityaml/packages/core/cell"
	"github.com/abdul-hamid-achik/hityaml/packages/core/parser"
	"github.com/abdul-hamid-achik/hityaml/packages/http"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// DefaultURI is the base URI name used when none is given.
const DefaultURI = "default"

// ErrUnknownURI is returned when the requested base URI name is not defined.
var ErrUnknownURI = errors.New("unknown base URI")

type Runner struct {
	client  *http.Client
	config  *Config
	logger  *slog.Logger
	limiter *rate.Limiter
}

type Config struct {
	// URI is a base URI name from the suite or URIs, or an absolute URL.
	URI  string
	URIs map[string]string

	Timeout        time.Duration
	FollowRedirect bool
	MaxRedirects   int
	ValidateSSL    bool
	Proxy          string
	Headers        map[string]string

	Bail       bool
	NameFilter string
	// Rate caps requests per second; 0 means unlimited.
	Rate float64
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithClient replaces the HTTP client built from Config.
func WithClient(client *http.Client) Option {
	return func(r *Runner) {
		r.client = client
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{FollowRedirect: true, ValidateSSL: true}
	}

	clientOpts := []http.ClientOption{
		http.WithFollowRedirects(cfg.FollowRedirect),
		http.WithValidateSSL(cfg.ValidateSSL),
	}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxRedirects > 0 {
		clientOpts = append(clientOpts, http.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		clientOpts = append(clientOpts, http.WithProxy(cfg.Proxy))
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, http.WithDefaultHeaders(cfg.Headers))
	}

	r := &Runner{
		client: http.NewClient(clientOpts...),
		config: cfg,
		logger: slog.New(slog.DiscardHandler),
	}
	if cfg.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type RunResult struct {
	ID        uuid.UUID
	File      string
	BaseURI   string
	StartedAt time.Time
	Results   []*RequestResult
	Duration  time.Duration
	Passed    int
	Failed    int
	Skipped   int
	Latency   LatencySummary
	Warnings  []string
	// Variables holds every cell bound when the run ended.
	Variables map[string]any
}

// OK reports whether no unit failed.
func (r *RunResult) OK() bool {
	return r.Failed == 0
}

type RequestResult struct {
	Group      string
	Name       string
	State      State
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	Request    *http.Request
	Response   *http.Response
	Assertions []*assertions.Result
	Captures   []capture.Captured
	// Error is the first failure; Errors holds every failure of the unit.
	Error  error
	Errors []error
}

// FullName is "group > METHOD /path".
func (r *RequestResult) FullName() string {
	return r.Group + " > " + r.Name
}

// RunFile loads path and runs it.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	suite, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	return r.RunSuite(ctx, suite)
}

// RunSuite runs every unit of suite on one stream, in order. Cells start
// unset on every call, so a parsed suite can be run more than once.
func (r *Runner) RunSuite(ctx context.Context, suite *parser.Suite) (*RunResult, error) {
	suite.Cells.Reset()
	for _, w := range suite.Warnings {
		r.logger.Warn(w)
	}

	base, err := r.ResolveBaseURI(suite)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &RunResult{
		ID:        uuid.New(),
		File:      suite.Path,
		BaseURI:   base,
		StartedAt: start,
		Warnings:  suite.Warnings,
	}
	lat := newLatency()
	baseDir := filepath.Dir(suite.Path)

	r.logger.Debug("run started", "run", result.ID, "file", suite.Path, "base", base, "units", suite.RequestCount())

	halted := ""
	for _, u := range Units(suite) {
		var reqResult *RequestResult
		switch {
		case halted != "":
			reqResult = r.skip(u, halted)
		case !r.shouldRun(u):
			reqResult = r.skip(u, "filtered out")
		default:
			if err := r.wait(ctx); err != nil {
				halted = "cancelled"
				reqResult = r.skip(u, halted)
				break
			}
			reqResult = r.runUnit(ctx, u, base, suite.Cells, baseDir)
		}

		result.Results = append(result.Results, reqResult)
		switch {
		case reqResult.Skipped:
			result.Skipped++
		case reqResult.Passed:
			result.Passed++
		default:
			result.Failed++
			if r.config.Bail && halted == "" {
				halted = "bail: an earlier unit failed"
			}
		}
		if reqResult.Response != nil {
			lat.record(reqResult.Duration)
		}
	}

	result.Duration = time.Since(start)
	result.Latency = lat.summary()
	result.Variables = suite.Cells.Bound()
	r.logger.Debug("run finished", "run", result.ID, "passed", result.Passed, "failed", result.Failed,
		"skipped", result.Skipped, "duration", result.Duration)
	return result, nil
}

// ResolveBaseURI picks the base URI for suite: an absolute URL is used as is,
// otherwise the name is looked up in the suite's baseUri mapping, then in the
// configured URIs. The default name falls back to a scalar baseUri.
func (r *Runner) ResolveBaseURI(suite *parser.Suite) (string, error) {
	name := r.config.URI
	if name == "" {
		name = DefaultURI
	}
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		return name, nil
	}
	if uri, ok := suite.BaseURIs[name]; ok {
		return uri, nil
	}
	if uri, ok := r.config.URIs[name]; ok {
		return uri, nil
	}
	if name == DefaultURI && suite.BaseURI != "" {
		return suite.BaseURI, nil
	}
	return "", fmt.Errorf("%w %q in %s", ErrUnknownURI, name, suite.Path)
}

func (r *Runner) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

func (r *Runner) skip(u *Unit, reason string) *RequestResult {
	u.State = StateSkipped
	r.logger.Debug("unit skipped", "group", u.Group.Name, "entry", u.Request.Key, "reason", reason)
	return &RequestResult{
		Group:      u.Group.Name,
		Name:       u.Request.Key,
		State:      StateSkipped,
		Skipped:    true,
		SkipReason: reason,
	}
}

func (r *Runner) transition(u *Unit, to State, attrs ...any) {
	u.State = to
	r.logger.Debug("unit "+to.String(), append([]any{"group", u.Group.Name, "entry", u.Request.Key}, attrs...)...)
}

func (r *Runner) runUnit(ctx context.Context, u *Unit, base string, cells *cell.Store, baseDir string) *RequestResult {
	result := &RequestResult{
		Group: u.Group.Name,
		Name:  u.Request.Key,
	}
	u.State = StatePending

	start := time.Now()
	defer func() {
		result.State = u.State
		if len(result.Errors) > 0 {
			result.Error = result.Errors[0]
		}
	}()

	httpReq, err := http.BuildRequest(u.Request, base, cells)
	if err != nil {
		result.Errors = append(result.Errors, err)
		r.transition(u, StateFailed, "error", err)
		return result
	}
	result.Request = httpReq
	r.transition(u, StateRequested, "method", httpReq.Method, "url", httpReq.URL)

	resp, err := r.client.Do(ctx, httpReq)
	result.Duration = time.Since(start)
	if err != nil {
		result.Errors = append(result.Errors, err)
		r.transition(u, StateTransportFailed, "error", err)
		r.transition(u, StateFailed)
		return result
	}
	result.Response = resp
	r.transition(u, StateResponded, "status", resp.StatusCode, "duration", resp.Duration)

	evaluator := assertions.NewEvaluator(resp, assertions.WithCells(cells), assertions.WithBaseDir(baseDir))
	result.Assertions = evaluator.EvaluateAll(u.Plan)
	for _, a := range result.Assertions {
		if err := a.Failure(); err != nil {
			result.Errors = append(result.Errors, err)
		}
	}

	captured, err := capture.Apply(resp, u.Plan.Takes, cells)
	result.Captures = captured
	if err != nil {
		r.logger.Warn("take failed", "group", u.Group.Name, "entry", u.Request.Key, "error", err)
		result.Errors = append(result.Errors, err)
	}

	result.Passed = len(result.Errors) == 0
	if result.Passed {
		r.transition(u, StatePassed)
	} else {
		r.transition(u, StateFailed, "failures", len(result.Errors))
	}
	return result
}

func (r *Runner) shouldRun(u *Unit) bool {
	if r.config.NameFilter == "" {
		return true
	}
	return matchesPattern(u.Name(), r.config.NameFilter) ||
		matchesPattern(u.Group.Name, r.config.NameFilter) ||
		matchesPattern(u.Request.Key, r.config.NameFilter)
}

// matchesPattern supports a leading and/or trailing '*' wildcard.
func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	prefix := strings.HasPrefix(pattern, "*")
	suffix := strings.HasSuffix(pattern, "*")
	core := strings.Trim(pattern, "*")

	switch {
	case prefix && suffix:
		return strings.Contains(name, core)
	case prefix:
		return strings.HasSuffix(name, core)
	case suffix:
		return strings.HasPrefix(name, core)
	default:
		return name == pattern
	}
}

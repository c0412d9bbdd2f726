package assertions

import (
	"github.com/abdul-hamid-achik/hityaml/packages/core/parser"
	"github.com/abdul-hamid-achik/hityaml/packages/core/value"
)

// CheckKind names what a check looks at.
type CheckKind string

const (
	CheckStatus      CheckKind = "status"
	CheckContentType CheckKind = "content-type"
	CheckBodyIs      CheckKind = "body.is"
	CheckMatch       CheckKind = "body.matches"
	CheckSchema      CheckKind = "body.schema"
	CheckHeader      CheckKind = "header"
)

func (k CheckKind) isBody() bool {
	return k == CheckBodyIs || k == CheckMatch || k == CheckSchema
}

// Check is one comparison against a response. Expected is the value as
// written and may hold cell references.
type Check struct {
	Kind     CheckKind
	Path     value.Path
	Header   string
	Expected any
	Line     int
}

// Subject is a short label used in reports, e.g. "body.user.id".
func (c *Check) Subject() string {
	switch c.Kind {
	case CheckMatch:
		if c.Path.IsRoot() {
			return "body"
		}
		return "body." + c.Path.String()
	case CheckHeader:
		return "header " + c.Header
	case CheckBodyIs:
		return "body"
	default:
		return string(c.Kind)
	}
}

// Plan is the ordered list of checks for one response block, plus the
// extractions to run after them.
type Plan struct {
	Checks []*Check
	Takes  []*parser.Take
}

// Compile orders the checks of exp. A nil expectation yields an empty plan.
func Compile(exp *parser.Expectation) *Plan {
	plan := &Plan{}
	if exp == nil {
		return plan
	}

	if exp.Status != 0 {
		plan.Checks = append(plan.Checks, &Check{Kind: CheckStatus, Expected: exp.Status, Line: exp.Line})
	}
	if exp.ContentType != "" {
		plan.Checks = append(plan.Checks, &Check{Kind: CheckContentType, Expected: exp.ContentType, Line: exp.Line})
	}

	if body := exp.Body; body != nil {
		if body.HasIs {
			plan.Checks = append(plan.Checks, &Check{Kind: CheckBodyIs, Expected: body.Is, Line: exp.Line})
		}
		for _, m := range body.Matches {
			plan.Checks = append(plan.Checks, &Check{Kind: CheckMatch, Path: m.Path, Expected: m.Expected, Line: m.Line})
		}
		if body.HasSchema {
			plan.Checks = append(plan.Checks, &Check{Kind: CheckSchema, Expected: body.Schema, Line: exp.Line})
		}
		plan.Takes = body.Take
	}

	for _, h := range exp.Headers {
		plan.Checks = append(plan.Checks, &Check{Kind: CheckHeader, Header: h.Key, Expected: h.Value, Line: h.Line})
	}
	return plan
}

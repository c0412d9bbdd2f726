package parser

import (
	"github.com/abdul-hamid-achik/hityaml/packages/core/cell"
	"github.com/abdul-hamid-achik/hityaml/packages/core/value"
)

// Suite is one loaded document. Groups and their requests keep document
// order, which is the execution order.
type Suite struct {
	Path     string
	BaseURI  string
	BaseURIs map[string]string
	Groups   []*Group
	Cells    *cell.Store
	Warnings []string
}

// RequestCount returns the number of requests across all groups.
func (s *Suite) RequestCount() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.Requests)
	}
	return n
}

type Group struct {
	Name     string
	Requests []*Request
	Line     int
}

type Request struct {
	// Key is the request key as written, e.g. "GET /users".
	Key string
	// Method is lower-cased.
	Method      string
	Path        string
	QueryParams []*Param
	Headers     []*Param
	Body        any
	HasBody     bool
	Response    *Expectation
	Line        int
}

// Param is a query parameter or header. Value may be a literal, a cell.Ref,
// or for query parameters a []any of those.
type Param struct {
	Key   string
	Value any
	Line  int
}

// Expectation is the response block of a request.
type Expectation struct {
	// Status is the expected status code, 0 when unchecked.
	Status      int
	ContentType string
	Headers     []*Param
	Body        *BodyExpectation
	Line        int
}

type BodyExpectation struct {
	Is        any
	HasIs     bool
	Matches   []*Match
	Take      []*Take
	Schema    any
	HasSchema bool
}

type Match struct {
	Path     value.Path
	Expected any
	Line     int
}

// Take writes the value found at Path into every target cell.
type Take struct {
	Path    value.Path
	Targets []cell.Ref
	Line    int
}

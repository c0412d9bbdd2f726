package capture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hityaml/packages/core/cell"
	"github.com/abdul-hamid-achik/hityaml/packages/core/parser"
	"github.com/abdul-hamid-achik/hityaml/packages/core/value"
	"github.com/abdul-hamid-achik/hityaml/packages/http"
)

var ErrNotFound = errors.New("path not found in response body")

// NotFoundError reports a take whose path resolved to nothing.
type NotFoundError struct {
	Path  string
	Cells []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("take %s: %v, %s left unchanged", e.Path, ErrNotFound, strings.Join(e.Cells, ", "))
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Captured is one successful take.
type Captured struct {
	Path  string
	Cells []string
	Value any
}

type Extractor struct {
	response *http.Response
	body     value.Body
}

func NewExtractor(resp *http.Response) *Extractor {
	return &Extractor{
		response: resp,
		body:     resp.ParsedBody(),
	}
}

// Extract resolves path against the response body.
func (e *Extractor) Extract(path value.Path) (any, bool) {
	return e.body.Lookup(path)
}

// Apply runs takes in order. Every take is attempted; the ones whose path is
// missing are returned joined as *NotFoundError values.
func Apply(resp *http.Response, takes []*parser.Take, store *cell.Store) ([]Captured, error) {
	extractor := NewExtractor(resp)
	var captured []Captured
	var errs []error

	for _, t := range takes {
		names := make([]string, len(t.Targets))
		for i, ref := range t.Targets {
			names[i] = store.Name(ref)
		}

		v, ok := extractor.Extract(t.Path)
		if !ok {
			errs = append(errs, &NotFoundError{Path: t.Path.String(), Cells: names})
			continue
		}
		for _, ref := range t.Targets {
			store.Set(ref, v)
		}
		captured = append(captured, Captured{Path: t.Path.String(), Cells: names, Value: v})
	}

	return captured, errors.Join(errs...)
}

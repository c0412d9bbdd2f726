package runner

import (
	"github.com/abdul-hamid-achik/hityaml/packages/assertions"
	"github.com/abdul-hamid-achik/hityaml/packages/core/parser"
)

// State is the lifecycle position of a unit.
type State int

const (
	StatePending State = iota
	StateRequested
	StateResponded
	StateTransportFailed
	StatePassed
	StateFailed
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRequested:
		return "requested"
	case StateResponded:
		return "responded"
	case StateTransportFailed:
		return "transport-failed"
	case StatePassed:
		return "passed"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Unit is one executable request of a suite with its compiled checks.
type Unit struct {
	Index   int
	Group   *parser.Group
	Request *parser.Request
	Plan    *assertions.Plan
	State   State
}

// Name is "group > METHOD /path".
func (u *Unit) Name() string {
	return u.Group.Name + " > " + u.Request.Key
}

// Units lists the units of suite in execution order: groups in document
// order, requests in document order within each group.
func Units(suite *parser.Suite) []*Unit {
	units := make([]*Unit, 0, suite.RequestCount())
	for _, g := range suite.Groups {
		for _, req := range g.Requests {
			units = append(units, &Unit{
				Index:   len(units),
				Group:   g,
				Request: req,
				Plan:    assertions.Compile(req.Response),
			})
		}
	}
	return units
}

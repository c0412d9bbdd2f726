// Package runner executes a loaded suite.
//
// Every request of every group becomes one unit, in document order. Units run
// one at a time on a single stream: a unit's request is built only after the
// previous unit has been evaluated and its takes written, so cell reads
// always observe earlier writes. A failing unit never stops the stream unless
// Bail is set. The cell store is not locked, which is sound only because of
// this ordering.
package runner

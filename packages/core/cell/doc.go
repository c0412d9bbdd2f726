// Package cell implements the variable cells that carry values from one
// request of a suite to the next.
//
// A Store owns every cell of a loaded suite. Parsing interns each cell name
// into a stable Ref; every reference in the document, whether written out
// again or reached through a YAML alias, resolves to that Ref. A take
// extraction writes through the Store and the value becomes visible to every
// holder of the Ref at once.
//
// A Store is not safe for concurrent use. Cells are read and written from the
// single execution stream of a suite run, in document order, and callers must
// keep it that way: running units concurrently would make reads race with the
// writes of earlier units.
package cell

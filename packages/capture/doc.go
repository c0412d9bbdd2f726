// Package capture runs the take extractions of a response block.
//
// Each take reads a path from the response body and writes the value into
// one or more cells of the suite, where later requests pick it up when they
// are built. A path that is not found leaves its cells untouched.
package capture

// Package value holds the value semantics shared by expectations and
// extractions: the tagged Expected variant, deep structural equality, and
// dotted/bracketed path navigation over response bodies.
package value

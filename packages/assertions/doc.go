// Package assertions checks responses against the response block of a
// request.
//
// Compile turns an expectation into an ordered plan: status, content-type,
// body.is, each body.matches path, body.schema, then each header. Evaluator
// runs every check of a plan, never stopping at the first failure, and binds
// variables in expected values at evaluation time.
package assertions

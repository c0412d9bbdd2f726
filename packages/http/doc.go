// Package http sends the requests of a suite.
//
// BuildRequest resolves a parsed request against a base URI and the current
// cell values, merging query parameters into any query string written in the
// request key. Client performs it and reads the whole response; anything
// short of a response is reported as a *TransportError.
package http

// Package parser loads hityaml suite documents.
//
// A document is a YAML mapping with an optional baseUri and a tests mapping
// of groups. Each group maps request keys such as "POST /login" to a request
// with queryParameters, headers, body and an expected response. Scalars
// tagged !var, !variable or !pointer become cells shared by name across the
// whole document, so a value taken from one response can be used by later
// requests. YAML anchors, aliases and merge keys are honoured, and
// `!include path` splices in another document before the suite is read.
package parser

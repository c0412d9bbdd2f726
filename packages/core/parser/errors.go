package parser

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse marks documents that are not valid YAML.
	ErrParse = errors.New("parse error")
	// ErrSchema marks valid YAML whose shape is not a test suite.
	ErrSchema = errors.New("schema error")

	ErrMalformedKey     = errors.New("request key must be exactly `METHOD /path`")
	ErrUnknownMethod    = errors.New("unknown method")
	ErrCaseError        = errors.New("method must be written in upper case")
	ErrMissingRootSlash = errors.New("path must start with '/' or '?'")
	ErrTrailingSlash    = errors.New("path must not end with '/'")
)

// KeyError reports an invalid request key.
type KeyError struct {
	Key string
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("invalid request key %q: %v", e.Key, e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// ParseError locates a load-time failure in a document. It unwraps to its
// Kind (ErrParse or ErrSchema, nil for key errors) and to the underlying
// error.
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
	Kind    error
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(":")
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, "%d:%d:", e.Line, e.Column)
	}
	if b.Len() > 0 {
		b.WriteString(" ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		if e.Message != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

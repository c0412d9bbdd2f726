package parser

import (
	"fmt"
	"strings"
)

// methods are the verbs accepted in request keys, lower-cased.
var methods = map[string]bool{
	"get": true, "post": true, "put": true, "patch": true, "delete": true,
	"head": true, "options": true, "trace": true, "connect": true,
	"copy": true, "lock": true, "unlock": true, "mkcol": true, "move": true,
	"propfind": true, "proppatch": true, "search": true, "purge": true,
	"report": true, "mkactivity": true, "checkout": true, "merge": true,
	"m-search": true, "notify": true, "subscribe": true, "unsubscribe": true,
	"link": true, "unlink": true,
}

// IsMethod reports whether m, in any case, is a known HTTP verb.
func IsMethod(m string) bool {
	return methods[strings.ToLower(m)]
}

// RequestKey is a validated `METHOD /path` key.
type RequestKey struct {
	// Method is the lower-cased verb.
	Method string
	Path   string
}

func (k *RequestKey) String() string {
	return strings.ToUpper(k.Method) + " " + k.Path
}

// ParseRequestKey validates and splits a key such as "GET /users/:id".
//
// A key that does not look like a request at all yields (nil, nil) so that
// callers can skip it: a single word that is not a verb, or a first word that
// is neither a verb nor upper-case, as in "notes here". Once the key is
// verb-shaped every violation is returned as a *KeyError, so "FETCH /users"
// is an unknown method.
func ParseRequestKey(key string) (*RequestKey, error) {
	fields := strings.Fields(key)
	if len(fields) == 0 {
		return nil, nil
	}
	if !IsMethod(fields[0]) && (len(fields) == 1 || !upperWord(fields[0])) {
		return nil, nil
	}
	if len(fields) != 2 {
		return nil, &KeyError{Key: key, Err: ErrMalformedKey}
	}

	verb, path := fields[0], fields[1]
	if !IsMethod(verb) {
		return nil, &KeyError{Key: key, Err: fmt.Errorf("%w %q", ErrUnknownMethod, verb)}
	}
	if verb != strings.ToUpper(verb) {
		return nil, &KeyError{Key: key, Err: fmt.Errorf("%w: %q", ErrCaseError, verb)}
	}
	if !strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "?") {
		return nil, &KeyError{Key: key, Err: ErrMissingRootSlash}
	}
	if path != "/" && strings.HasSuffix(path, "/") {
		return nil, &KeyError{Key: key, Err: ErrTrailingSlash}
	}

	return &RequestKey{
		Method: strings.ToLower(verb),
		Path:   path,
	}, nil
}

// upperWord reports whether w has letters and all of them are upper-case.
func upperWord(w string) bool {
	return w == strings.ToUpper(w) && w != strings.ToLower(w)
}

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/abdul-hamid-achik/hityaml/packages/core/cell"
	"github.com/abdul-hamid-achik/hityaml/packages/core/parser"
	"github.com/abdul-hamid-achik/hityaml/packages/core/value"
)

// ErrNoBaseURI is returned when a request has no base URI to resolve against.
var ErrNoBaseURI = errors.New("no base URI")

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// QueryParam is a resolved query parameter. Several values repeat the key.
type QueryParam struct {
	Key    string
	Values []string
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

// HasHeader reports whether key is set, ignoring case.
func (r *Request) HasHeader(key string) bool {
	for k := range r.Headers {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// BuildRequest turns a parsed request into a concrete one. Cells referenced by
// query parameters, headers and body are read from store at this moment, so an
// unset cell fails the build with a *cell.UndefinedError.
func BuildRequest(spec *parser.Request, baseURL string, store *cell.Store) (*Request, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%s: %w", spec.Key, ErrNoBaseURI)
	}

	params := make([]QueryParam, 0, len(spec.QueryParams))
	for _, p := range spec.QueryParams {
		v, err := store.Resolve(p.Value)
		if err != nil {
			return nil, fmt.Errorf("query parameter %q: %w", p.Key, err)
		}
		params = append(params, QueryParam{Key: p.Key, Values: scalars(v)})
	}

	r := NewRequest(strings.ToUpper(spec.Method), MergeQuery(JoinURL(baseURL, spec.Path), params))

	for _, h := range spec.Headers {
		v, err := store.Resolve(h.Value)
		if err != nil {
			return nil, fmt.Errorf("header %q: %w", h.Key, err)
		}
		r.SetHeader(h.Key, value.Scalar(v))
	}

	if spec.HasBody {
		v, err := store.Resolve(spec.Body)
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		if s, ok := v.(string); ok {
			r.SetBody([]byte(s))
		} else {
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encoding body: %w", err)
			}
			r.SetBody(data)
			if !r.HasHeader("Content-Type") {
				r.SetHeader("Content-Type", "application/json")
			}
		}
	}

	return r, nil
}

// JoinURL appends a request path, which starts with '/' or '?', to base.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// MergeQuery merges params into the query string of rawURL. A parameter
// replaces every existing pair with the same key at the position of the first
// one; other pairs keep their order and encoding. New keys are appended.
func MergeQuery(rawURL string, params []QueryParam) string {
	if len(params) == 0 {
		return rawURL
	}

	base, rest, _ := strings.Cut(rawURL, "?")
	rawQuery, fragment, hasFragment := strings.Cut(rest, "#")
	if !strings.Contains(rawURL, "?") {
		base, fragment, hasFragment = strings.Cut(rawURL, "#")
		rawQuery = ""
	}

	type pair struct {
		key string
		raw string
	}

	var pairs []pair
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		k, _, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			key = k
		}
		pairs = append(pairs, pair{key: key, raw: part})
	}

	for _, p := range params {
		encoded := make([]pair, len(p.Values))
		for i, v := range p.Values {
			encoded[i] = pair{key: p.Key, raw: url.QueryEscape(p.Key) + "=" + url.QueryEscape(v)}
		}

		at := -1
		kept := make([]pair, 0, len(pairs)+len(encoded))
		for _, existing := range pairs {
			if existing.key == p.Key {
				if at < 0 {
					at = len(kept)
				}
				continue
			}
			kept = append(kept, existing)
		}
		if at < 0 {
			kept = append(kept, encoded...)
		} else {
			kept = slices.Insert(kept, at, encoded...)
		}
		pairs = kept
	}

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.raw
	}

	out := base
	if len(parts) > 0 {
		out += "?" + strings.Join(parts, "&")
	}
	if hasFragment {
		out += "#" + fragment
	}
	return out
}

func scalars(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{value.Scalar(v)}
	}
	out := make([]string, len(list))
	for i, item := range list {
		out[i] = value.Scalar(item)
	}
	return out
}

package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/hityaml/packages/core/cell"
	"github.com/abdul-hamid-achik/hityaml/packages/core/value"
	"gopkg.in/yaml.v3"
)

const mergeTag = "!!merge"

// cellTags are the local tags that turn a scalar into a variable cell.
var cellTags = map[string]bool{
	"!var":      true,
	"!variable": true,
	"!pointer":  true,
}

// Option configures Parse.
type Option func(*parser)

// WithIncludes enables `!include` resolution relative to baseDir. Included
// files must stay inside baseDir.
func WithIncludes(baseDir string) Option {
	return func(p *parser) {
		p.includes = true
		p.baseDir = baseDir
	}
}

// WithoutIncludes rejects `!include` tags.
func WithoutIncludes() Option {
	return func(p *parser) {
		p.includes = false
	}
}

type parser struct {
	file     string
	includes bool
	baseDir  string
	suite    *Suite
}

type pair struct {
	key     string
	keyNode *yaml.Node
	value   *yaml.Node
}

func ParseFile(path string, opts ...Option) (*Suite, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithIncludes(filepath.Dir(path))}, opts...)
	return Parse(content, path, opts...)
}

// Parse loads a suite document.
func Parse(input []byte, filename string, opts ...Option) (*Suite, error) {
	p := &parser{
		file: filename,
		suite: &Suite{
			Path:  filename,
			Cells: cell.NewStore(),
		},
	}
	for _, opt := range opts {
		opt(p)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(input, &doc); err != nil {
		return nil, &ParseError{File: filename, Kind: ErrParse, Err: err}
	}
	if len(doc.Content) == 0 {
		return nil, p.schemaErr(nil, "document is empty, expected a mapping with a `tests` key")
	}
	root := doc.Content[0]

	if p.includes {
		inc := &includer{root: p.baseDir, file: filename}
		if err := inc.resolve(root, p.baseDir); err != nil {
			return nil, err
		}
	}

	if err := p.parseRoot(root); err != nil {
		return nil, err
	}
	return p.suite, nil
}

func (p *parser) parseRoot(root *yaml.Node) error {
	root = deref(root)
	if root.Kind != yaml.MappingNode {
		return p.schemaErr(root, "top level must be a mapping with a `tests` key")
	}
	pairs, err := p.pairs(root)
	if err != nil {
		return err
	}

	var tests *yaml.Node
	for _, kv := range pairs {
		switch kv.key {
		case "baseUri":
			if err := p.parseBaseURI(kv.value); err != nil {
				return err
			}
		case "tests":
			tests = deref(kv.value)
		default:
			p.warn(kv.keyNode, "ignoring unknown top-level key %q", kv.key)
		}
	}

	if tests == nil {
		return p.schemaErr(root, "missing `tests` mapping")
	}
	if tests.Kind != yaml.MappingNode {
		return p.schemaErr(tests, "`tests` must be a mapping of group names to requests")
	}
	groups, err := p.pairs(tests)
	if err != nil {
		return err
	}
	for _, kv := range groups {
		group, err := p.parseGroup(kv)
		if err != nil {
			return err
		}
		p.suite.Groups = append(p.suite.Groups, group)
	}
	return nil
}

func (p *parser) parseBaseURI(n *yaml.Node) error {
	n = deref(n)
	switch {
	case isNull(n):
		return nil
	case n.Kind == yaml.ScalarNode && !isCell(n):
		p.suite.BaseURI = n.Value
		return nil
	case n.Kind == yaml.MappingNode:
		pairs, err := p.pairs(n)
		if err != nil {
			return err
		}
		p.suite.BaseURIs = make(map[string]string, len(pairs))
		for _, kv := range pairs {
			v := deref(kv.value)
			if v.Kind != yaml.ScalarNode || isCell(v) {
				return p.schemaErr(v, "baseUri %q must be a string", kv.key)
			}
			p.suite.BaseURIs[kv.key] = v.Value
		}
		if def, ok := p.suite.BaseURIs["default"]; ok {
			p.suite.BaseURI = def
		}
		return nil
	default:
		return p.schemaErr(n, "`baseUri` must be a string or a mapping of names to URIs")
	}
}

func (p *parser) parseGroup(kv pair) (*Group, error) {
	group := &Group{Name: kv.key, Line: kv.keyNode.Line}
	n := deref(kv.value)
	if isNull(n) {
		return group, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, p.schemaErr(n, "group %q must be a mapping of request keys", kv.key)
	}
	entries, err := p.pairs(n)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		key, err := ParseRequestKey(entry.key)
		if err != nil {
			return nil, &ParseError{
				File:   p.file,
				Line:   entry.keyNode.Line,
				Column: entry.keyNode.Column,
				Err:    err,
			}
		}
		if key == nil {
			p.warn(entry.keyNode, "ignoring %q in group %q: not a request key", entry.key, kv.key)
			continue
		}
		req, err := p.parseRequest(entry, key)
		if err != nil {
			return nil, err
		}
		group.Requests = append(group.Requests, req)
	}
	return group, nil
}

func (p *parser) parseRequest(kv pair, key *RequestKey) (*Request, error) {
	req := &Request{
		Key:    kv.key,
		Method: key.Method,
		Path:   key.Path,
		Line:   kv.keyNode.Line,
	}
	n := deref(kv.value)
	if isNull(n) {
		return req, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, p.schemaErr(n, "request %q must be a mapping", kv.key)
	}
	fields, err := p.pairs(n)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		switch f.key {
		case "queryParameters":
			req.QueryParams, err = p.params(f.value, true)
		case "headers":
			req.Headers, err = p.params(f.value, false)
		case "body":
			req.Body, err = p.value(f.value)
			req.HasBody = true
		case "response":
			req.Response, err = p.parseExpectation(f.value)
		default:
			p.warn(f.keyNode, "ignoring unknown key %q in request %q", f.key, kv.key)
		}
		if err != nil {
			return nil, err
		}
	}
	return req, nil
}

func (p *parser) params(n *yaml.Node, allowLists bool) ([]*Param, error) {
	n = deref(n)
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, p.schemaErr(n, "expected a mapping")
	}
	pairs, err := p.pairs(n)
	if err != nil {
		return nil, err
	}
	params := make([]*Param, 0, len(pairs))
	for _, kv := range pairs {
		v := deref(kv.value)
		if v.Kind == yaml.MappingNode || (v.Kind == yaml.SequenceNode && !allowLists) {
			return nil, p.schemaErr(v, "value of %q must be a scalar or a variable", kv.key)
		}
		val, err := p.value(kv.value)
		if err != nil {
			return nil, err
		}
		if list, ok := val.([]any); ok {
			for _, item := range list {
				switch item.(type) {
				case map[string]any, []any:
					return nil, p.schemaErr(v, "list items of %q must be scalars or variables", kv.key)
				}
			}
		}
		params = append(params, &Param{Key: kv.key, Value: val, Line: kv.keyNode.Line})
	}
	return params, nil
}

func (p *parser) parseExpectation(n *yaml.Node) (*Expectation, error) {
	n = deref(n)
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, p.schemaErr(n, "`response` must be a mapping")
	}
	exp := &Expectation{Line: n.Line}
	fields, err := p.pairs(n)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		v := deref(f.value)
		switch f.key {
		case "status":
			if v.Kind != yaml.ScalarNode || v.ShortTag() != "!!int" {
				return nil, p.schemaErr(v, "`status` must be an integer")
			}
			if err := v.Decode(&exp.Status); err != nil {
				return nil, p.schemaErr(v, "`status`: %v", err)
			}
		case "content-type":
			if v.Kind != yaml.ScalarNode || isCell(v) {
				return nil, p.schemaErr(v, "`content-type` must be a string")
			}
			exp.ContentType = v.Value
		case "headers":
			exp.Headers, err = p.params(f.value, false)
		case "body":
			exp.Body, err = p.parseBodyExpectation(f.value)
		default:
			p.warn(f.keyNode, "ignoring unknown key %q in response", f.key)
		}
		if err != nil {
			return nil, err
		}
	}
	return exp, nil
}

func (p *parser) parseBodyExpectation(n *yaml.Node) (*BodyExpectation, error) {
	n = deref(n)
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, p.schemaErr(n, "`response.body` must be a mapping with is, matches, take or schema")
	}
	body := &BodyExpectation{}
	fields, err := p.pairs(n)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		switch f.key {
		case "is":
			body.Is, err = p.value(f.value)
			body.HasIs = true
		case "matches":
			body.Matches, err = p.parseMatches(f.value)
		case "take":
			body.Take, err = p.parseTakes(f.value)
		case "schema":
			body.Schema, err = p.value(f.value)
			body.HasSchema = true
		default:
			p.warn(f.keyNode, "ignoring unknown key %q in response body", f.key)
		}
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

func (p *parser) parseMatches(n *yaml.Node) ([]*Match, error) {
	n = deref(n)
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, p.schemaErr(n, "`matches` must be a mapping of paths to values")
	}
	pairs, err := p.pairs(n)
	if err != nil {
		return nil, err
	}
	matches := make([]*Match, 0, len(pairs))
	for _, kv := range pairs {
		path, err := value.ParsePath(kv.key)
		if err != nil {
			return nil, p.schemaErr(kv.keyNode, "%v", err)
		}
		expected, err := p.value(kv.value)
		if err != nil {
			return nil, err
		}
		matches = append(matches, &Match{Path: path, Expected: expected, Line: kv.keyNode.Line})
	}
	return matches, nil
}

// parseTakes reads `take`. A destination is either a variable itself, or a
// mapping whose keys name the cells to write; a mapping value that is itself
// a variable is written as well.
func (p *parser) parseTakes(n *yaml.Node) ([]*Take, error) {
	n = deref(n)
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, p.schemaErr(n, "`take` must be a mapping of paths to variables")
	}
	pairs, err := p.pairs(n)
	if err != nil {
		return nil, err
	}
	takes := make([]*Take, 0, len(pairs))
	for _, kv := range pairs {
		path, err := value.ParsePath(kv.key)
		if err != nil {
			return nil, p.schemaErr(kv.keyNode, "%v", err)
		}
		take := &Take{Path: path, Line: kv.keyNode.Line}
		dest := deref(kv.value)
		switch {
		case isCell(dest):
			ref, err := p.cell(dest)
			if err != nil {
				return nil, err
			}
			take.Targets = append(take.Targets, ref)
		case dest.Kind == yaml.MappingNode:
			targets, err := p.pairs(dest)
			if err != nil {
				return nil, err
			}
			for _, t := range targets {
				take.Targets = appendRef(take.Targets, p.suite.Cells.Declare(t.key))
				if v := deref(t.value); isCell(v) {
					ref, err := p.cell(v)
					if err != nil {
						return nil, err
					}
					take.Targets = appendRef(take.Targets, ref)
				}
			}
		default:
			return nil, p.schemaErr(dest, "destination of take %q must be a variable or a mapping of variable names", kv.key)
		}
		if len(take.Targets) == 0 {
			return nil, p.schemaErr(dest, "take %q has no destination", kv.key)
		}
		takes = append(takes, take)
	}
	return takes, nil
}

func appendRef(refs []cell.Ref, ref cell.Ref) []cell.Ref {
	for _, r := range refs {
		if r == ref {
			return refs
		}
	}
	return append(refs, ref)
}

// value decodes n into plain Go values, turning tagged scalars into cell refs.
func (p *parser) value(n *yaml.Node) (any, error) {
	n = deref(n)
	switch n.Kind {
	case yaml.ScalarNode:
		if isCell(n) {
			return p.cell(n)
		}
		if isLocalTag(n.Tag) {
			return nil, p.schemaErr(n, "unknown tag %s", n.Tag)
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, p.schemaErr(n, "%v", err)
		}
		return v, nil
	case yaml.SequenceNode:
		if isLocalTag(n.Tag) {
			return nil, p.schemaErr(n, "tag %s cannot be used on a sequence", n.Tag)
		}
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := p.value(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		if isLocalTag(n.Tag) {
			return nil, p.schemaErr(n, "tag %s cannot be used on a mapping", n.Tag)
		}
		pairs, err := p.pairs(n)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(pairs))
		for _, kv := range pairs {
			v, err := p.value(kv.value)
			if err != nil {
				return nil, err
			}
			out[kv.key] = v
		}
		return out, nil
	default:
		return nil, p.schemaErr(n, "unsupported node")
	}
}

func (p *parser) cell(n *yaml.Node) (cell.Ref, error) {
	name := strings.TrimSpace(n.Value)
	if n.Kind != yaml.ScalarNode || name == "" {
		return 0, p.schemaErr(n, "%s needs a variable name", n.Tag)
	}
	return p.suite.Cells.Declare(name), nil
}

// pairs returns the entries of a mapping in document order. Merge keys are
// expanded in place; explicit keys win over merged ones.
func (p *parser) pairs(n *yaml.Node) ([]pair, error) {
	explicit := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := deref(n.Content[i])
		if k.ShortTag() != mergeTag {
			explicit[k.Value] = true
		}
	}

	var out []pair
	seen := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := deref(n.Content[i]), n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, p.schemaErr(k, "mapping keys must be scalars")
		}
		if k.ShortTag() == mergeTag {
			merged, err := p.mergePairs(v)
			if err != nil {
				return nil, err
			}
			for _, m := range merged {
				if explicit[m.key] || seen[m.key] {
					continue
				}
				seen[m.key] = true
				out = append(out, m)
			}
			continue
		}
		if seen[k.Value] {
			return nil, p.schemaErr(k, "duplicate key %q", k.Value)
		}
		seen[k.Value] = true
		out = append(out, pair{key: k.Value, keyNode: k, value: v})
	}
	return out, nil
}

func (p *parser) mergePairs(v *yaml.Node) ([]pair, error) {
	v = deref(v)
	switch v.Kind {
	case yaml.MappingNode:
		return p.pairs(v)
	case yaml.SequenceNode:
		var out []pair
		seen := make(map[string]bool)
		for _, item := range v.Content {
			item = deref(item)
			if item.Kind != yaml.MappingNode {
				return nil, p.schemaErr(item, "merge key needs mappings")
			}
			pairs, err := p.pairs(item)
			if err != nil {
				return nil, err
			}
			// earlier mappings in a merge sequence take precedence
			for _, kv := range pairs {
				if !seen[kv.key] {
					seen[kv.key] = true
					out = append(out, kv)
				}
			}
		}
		return out, nil
	default:
		return nil, p.schemaErr(v, "merge key needs a mapping or a sequence of mappings")
	}
}

func (p *parser) schemaErr(n *yaml.Node, format string, args ...any) error {
	e := &ParseError{
		File:    p.file,
		Kind:    ErrSchema,
		Message: fmt.Sprintf(format, args...),
	}
	if n != nil {
		e.Line, e.Column = n.Line, n.Column
	}
	return e
}

func (p *parser) warn(n *yaml.Node, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if n != nil {
		msg = fmt.Sprintf("%s:%d: %s", p.file, n.Line, msg)
	}
	p.suite.Warnings = append(p.suite.Warnings, msg)
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}

func isCell(n *yaml.Node) bool {
	return n != nil && cellTags[n.Tag]
}

func isLocalTag(tag string) bool {
	return strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!")
}

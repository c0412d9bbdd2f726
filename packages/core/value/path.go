package value

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Segment is one step of a Path: an object key or an array index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path is a parsed dotted/bracketed path expression such as
// `user.id`, `items[0].name` or `headers["x.y"]`. The empty path, `.` and `$`
// address the whole body.
type Path struct {
	expr     string
	segments []Segment
}

// ParsePath parses expr.
func ParsePath(expr string) (Path, error) {
	p := Path{expr: expr}
	s := strings.TrimSpace(expr)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, ".")
	if s == "" {
		return p, nil
	}

	i := 0
	expectKey := true
	for i < len(s) {
		switch c := s[i]; {
		case c == '[':
			seg, next, err := parseBracket(s, i)
			if err != nil {
				return Path{}, fmt.Errorf("invalid path %q: %w", expr, err)
			}
			p.segments = append(p.segments, seg)
			i = next
			expectKey = false
		case c == '.':
			if expectKey {
				return Path{}, fmt.Errorf("invalid path %q: empty key at offset %d", expr, i)
			}
			i++
			if i == len(s) {
				return Path{}, fmt.Errorf("invalid path %q: trailing dot", expr)
			}
			expectKey = true
		default:
			if !expectKey {
				return Path{}, fmt.Errorf("invalid path %q: expected '.' or '[' at offset %d", expr, i)
			}
			var key strings.Builder
			for i < len(s) && s[i] != '.' && s[i] != '[' {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				key.WriteByte(s[i])
				i++
			}
			p.segments = append(p.segments, Segment{Key: key.String()})
			expectKey = false
		}
	}
	return p, nil
}

func parseBracket(s string, start int) (Segment, int, error) {
	i := start + 1
	if i >= len(s) {
		return Segment{}, 0, fmt.Errorf("unterminated '[' at offset %d", start)
	}
	if q := s[i]; q == '"' || q == '\'' {
		end := strings.IndexByte(s[i+1:], q)
		if end < 0 {
			return Segment{}, 0, fmt.Errorf("unterminated quoted key at offset %d", i)
		}
		key := s[i+1 : i+1+end]
		i = i + 1 + end + 1
		if i >= len(s) || s[i] != ']' {
			return Segment{}, 0, fmt.Errorf("expected ']' at offset %d", i)
		}
		return Segment{Key: key}, i + 1, nil
	}
	end := strings.IndexByte(s[i:], ']')
	if end < 0 {
		return Segment{}, 0, fmt.Errorf("unterminated '[' at offset %d", start)
	}
	n, err := strconv.Atoi(s[i : i+end])
	if err != nil || n < 0 {
		return Segment{}, 0, fmt.Errorf("invalid index %q at offset %d", s[i:i+end], i)
	}
	return Segment{Index: n, IsIndex: true}, i + end + 1, nil
}

// MustParsePath is ParsePath for expressions known to be valid.
func MustParsePath(expr string) Path {
	p, err := ParsePath(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string { return p.expr }

// IsRoot reports whether the path addresses the whole body.
func (p Path) IsRoot() bool { return len(p.segments) == 0 }

// Body is a response body together with its decoded value. JSON numbers are
// kept as json.Number so large integers survive a capture unchanged.
type Body struct {
	Raw     []byte
	JSON    bool
	Value   any
	Present bool
}

// ParseBody decodes raw as JSON when the content type says so, or when no
// content type is given and the text is valid JSON. Anything else is kept as
// a string.
func ParseBody(raw []byte, contentType string) Body {
	b := Body{Raw: raw}
	if len(raw) == 0 {
		return b
	}
	b.Present = true
	ct := strings.ToLower(contentType)
	if (strings.Contains(ct, "json") || ct == "") && gjson.ValidBytes(raw) {
		b.JSON = true
		b.Value = decode(gjson.ParseBytes(raw))
		return b
	}
	b.Value = string(raw)
	return b
}

// decode converts a gjson result into plain Go values, keeping numbers as
// their literal text.
func decode(res gjson.Result) any {
	switch res.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return json.Number(strings.TrimSpace(res.Raw))
	case gjson.String:
		return res.Str
	}
	if res.IsArray() {
		out := []any{}
		res.ForEach(func(_, item gjson.Result) bool {
			out = append(out, decode(item))
			return true
		})
		return out
	}
	out := map[string]any{}
	res.ForEach(func(key, item gjson.Result) bool {
		out[key.Str] = decode(item)
		return true
	})
	return out
}

// Lookup resolves p against the body. Keys are matched literally, so no
// character in a key has a special meaning.
func (b Body) Lookup(p Path) (any, bool) {
	if !b.Present {
		return nil, false
	}
	if p.IsRoot() {
		return b.Value, true
	}
	if !b.JSON {
		return nil, false
	}
	cur := b.Value
	for _, seg := range p.segments {
		switch node := cur.(type) {
		case map[string]any:
			if seg.IsIndex {
				return nil, false
			}
			next, ok := node[seg.Key]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i := seg.Index
			if !seg.IsIndex {
				n, err := strconv.Atoi(seg.Key)
				if err != nil {
					return nil, false
				}
				i = n
			}
			if i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

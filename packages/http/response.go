package http

import (
	"mime"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hityaml/packages/core/value"
)

type Response struct {
	StatusCode int
	Status     string
	// Headers holds one entry per header name; repeated headers are joined
	// with ", ".
	Headers  map[string]string
	Body     []byte
	Duration time.Duration

	parsed *value.Body
}

// ParsedBody decodes the body once, as JSON when the content type allows it.
func (r *Response) ParsedBody() value.Body {
	if r.parsed == nil {
		b := value.ParseBody(r.Body, r.ContentType())
		r.parsed = &b
	}
	return *r.parsed
}

// Header returns the value of key, ignoring case, and whether it was sent.
func (r *Response) Header(key string) (string, bool) {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func (r *Response) ContentType() string {
	ct, _ := r.Header("Content-Type")
	return ct
}

// MediaType strips any ;-parameters from a content type and lower-cases it.
func MediaType(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

package http

import (
	"errors"
	"testing"

	"github.com/abdul-hamid-achik/hityaml/packages/core/cell"
	"github.com/abdul-hamid-achik/hityaml/packages/core/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeQuery(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		params []QueryParam
		want   string
	}{
		{
			name:   "replaces and appends",
			url:    "/search?q=a",
			params: []QueryParam{{Key: "q", Values: []string{"b"}}, {Key: "page", Values: []string{"1"}}},
			want:   "/search?q=b&page=1",
		},
		{
			name:   "keeps other pairs in place",
			url:    "http://x/items?sort=asc&q=a&limit=5",
			params: []QueryParam{{Key: "q", Values: []string{"z"}}},
			want:   "http://x/items?sort=asc&q=z&limit=5",
		},
		{
			name:   "no existing query",
			url:    "http://x/items",
			params: []QueryParam{{Key: "name", Values: []string{"a b&c"}}},
			want:   "http://x/items?name=a+b%26c",
		},
		{
			name:   "repeated values",
			url:    "/tags?tag=old&tag=older",
			params: []QueryParam{{Key: "tag", Values: []string{"x", "y"}}},
			want:   "/tags?tag=x&tag=y",
		},
		{
			name:   "fragment kept",
			url:    "/page#top",
			params: []QueryParam{{Key: "a", Values: []string{"1"}}},
			want:   "/page?a=1#top",
		},
		{
			name: "nothing to merge",
			url:  "/raw?x=%20",
			want: "/raw?x=%20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeQuery(tt.url, tt.params))
		})
	}
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://x/api/users", JoinURL("http://x/api/", "/users"))
	assert.Equal(t, "http://x?q=1", JoinURL("http://x", "?q=1"))
	assert.Equal(t, "http://x/", JoinURL("http://x", "/"))
}

func TestBuildRequest(t *testing.T) {
	store := cell.NewStore()
	token := store.Declare("token")
	store.Set(token, "abc123")

	spec := &parser.Request{
		Key:    "POST /login?debug=1",
		Method: "post",
		Path:   "/login?debug=1",
		QueryParams: []*parser.Param{
			{Key: "token", Value: token},
			{Key: "page", Value: 2},
		},
		Headers: []*parser.Param{
			{Key: "Authorization", Value: token},
			{Key: "X-Retry", Value: true},
		},
		Body:    map[string]any{"user": "alice", "token": token},
		HasBody: true,
	}

	req, err := BuildRequest(spec, "http://localhost:8080/", store)
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "http://localhost:8080/login?debug=1&token=abc123&page=2", req.URL)
	assert.Equal(t, "abc123", req.Headers["Authorization"])
	assert.Equal(t, "true", req.Headers["X-Retry"])
	assert.Equal(t, "application/json", req.Headers["Content-Type"])
	assert.JSONEq(t, `{"user":"alice","token":"abc123"}`, string(req.Body))
}

func TestBuildRequest_StringBodyVerbatim(t *testing.T) {
	spec := &parser.Request{
		Key:     "PUT /note",
		Method:  "put",
		Path:    "/note",
		Headers: []*parser.Param{{Key: "content-type", Value: "text/plain"}},
		Body:    "hello",
		HasBody: true,
	}

	req, err := BuildRequest(spec, "http://x", cell.NewStore())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(req.Body))
	assert.Len(t, req.Headers, 1)
}

func TestBuildRequest_UndefinedCell(t *testing.T) {
	store := cell.NewStore()
	token := store.Declare("token")
	spec := &parser.Request{
		Key:         "GET /profile",
		Method:      "get",
		Path:        "/profile",
		QueryParams: []*parser.Param{{Key: "token", Value: token}},
	}

	_, err := BuildRequest(spec, "http://x", store)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cell.ErrUndefinedVariable))
	assert.Contains(t, err.Error(), "token")
}

func TestBuildRequest_NoBaseURI(t *testing.T) {
	spec := &parser.Request{Key: "GET /a", Method: "get", Path: "/a"}
	_, err := BuildRequest(spec, "", cell.NewStore())
	assert.True(t, errors.Is(err, ErrNoBaseURI))
}

package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestKey_Valid(t *testing.T) {
	tests := []struct {
		key    string
		method string
		path   string
	}{
		{"GET /", "get", "/"},
		{"GET /users", "get", "/users"},
		{"POST /login", "post", "/login"},
		{"DELETE /users/:id", "delete", "/users/:id"},
		{"GET ?q=1", "get", "?q=1"},
		{"  PATCH   /items/1  ", "patch", "/items/1"},
		{"PROPFIND /dav", "propfind", "/dav"},
		{"M-SEARCH /ssdp", "m-search", "/ssdp"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			k, err := ParseRequestKey(tt.key)
			require.NoError(t, err)
			require.NotNil(t, k)
			assert.Equal(t, tt.method, k.Method)
			assert.Equal(t, tt.path, k.Path)
		})
	}
}

func TestParseRequestKey_NotARequest(t *testing.T) {
	for _, key := range []string{"", "   ", "description", "setup", "notes here", "the users list", "Todo: fix /a", "42 /a"} {
		k, err := ParseRequestKey(key)
		assert.NoError(t, err, key)
		assert.Nil(t, k, key)
	}
}

func TestParseRequestKey_Errors(t *testing.T) {
	tests := []struct {
		key  string
		want error
	}{
		{"GET", ErrMalformedKey},
		{"GET /a /b", ErrMalformedKey},
		{"THE USERS LIST", ErrMalformedKey},
		{"FETCH /users", ErrUnknownMethod},
		{"FOO /x", ErrUnknownMethod},
		{"get /users", ErrCaseError},
		{"Get /users", ErrCaseError},
		{"GET users", ErrMissingRootSlash},
		{"GET /users/", ErrTrailingSlash},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			k, err := ParseRequestKey(tt.key)
			assert.Nil(t, k)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var keyErr *KeyError
			require.True(t, errors.As(err, &keyErr))
			assert.Equal(t, tt.key, keyErr.Key)
		})
	}
}

func TestRequestKey_String(t *testing.T) {
	k, err := ParseRequestKey("PUT /items/1")
	require.NoError(t, err)
	assert.Equal(t, "PUT /items/1", k.String())
}

func TestIsMethod(t *testing.T) {
	assert.True(t, IsMethod("GET"))
	assert.True(t, IsMethod("options"))
	assert.False(t, IsMethod("FETCH"))
}

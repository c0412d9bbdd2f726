package capture

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/abdul-hamid-achik/hityaml/packages/core/cell"
	"github.com/abdul-hamid-achik/hityaml/packages/core/parser"
	"github.com/abdul-hamid-achik/hityaml/packages/core/value"
	"github.com/abdul-hamid-achik/hityaml/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}
}

func TestApply_WritesEveryTarget(t *testing.T) {
	store := cell.NewStore()
	token := store.Declare("token")
	copyRef := store.Declare("tokenCopy")
	id := store.Declare("id")

	takes := []*parser.Take{
		{Path: value.MustParsePath("auth.token"), Targets: []cell.Ref{token, copyRef}},
		{Path: value.MustParsePath("items[1].id"), Targets: []cell.Ref{id}},
	}

	captured, err := Apply(jsonResponse(`{"auth": {"token": "abc"}, "items": [{"id": 1}, {"id": 2}]}`), takes, store)
	require.NoError(t, err)
	require.Len(t, captured, 2)
	assert.Equal(t, []string{"token", "tokenCopy"}, captured[0].Cells)

	v, ok := store.Get(token)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
	v, _ = store.Get(copyRef)
	assert.Equal(t, "abc", v)
	v, _ = store.Get(id)
	assert.Equal(t, json.Number("2"), v)
}

func TestApply_NotFoundLeavesCellUntouched(t *testing.T) {
	store := cell.NewStore()
	token := store.Declare("token")
	store.Set(token, "previous")
	other := store.Declare("other")

	takes := []*parser.Take{
		{Path: value.MustParsePath("missing"), Targets: []cell.Ref{token}},
		{Path: value.MustParsePath("present"), Targets: []cell.Ref{other}},
	}

	captured, err := Apply(jsonResponse(`{"present": {"x": 1}}`), takes, store)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing", notFound.Path)
	assert.Contains(t, err.Error(), "token left unchanged")

	v, _ := store.Get(token)
	assert.Equal(t, "previous", v)
	require.Len(t, captured, 1)
	v, _ = store.Get(other)
	assert.Equal(t, map[string]any{"x": json.Number("1")}, v)
}

func TestApply_NoBody(t *testing.T) {
	store := cell.NewStore()
	ref := store.Declare("id")

	resp := &http.Response{StatusCode: 204, Headers: map[string]string{}}
	_, err := Apply(resp, []*parser.Take{{Path: value.MustParsePath("id"), Targets: []cell.Ref{ref}}}, store)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, ok := store.Get(ref)
	assert.False(t, ok)
}

func TestExtractor_RootPath(t *testing.T) {
	e := NewExtractor(jsonResponse(`[1, 2]`))
	v, ok := e.Extract(value.MustParsePath("$"))
	assert.True(t, ok)
	assert.Equal(t, []any{json.Number("1"), json.Number("2")}, v)
}

func TestApply_BraceKeyIsLiteral(t *testing.T) {
	store := cell.NewStore()
	ref := store.Declare("x")

	takes := []*parser.Take{{Path: value.MustParsePath(`["{nope}"]`), Targets: []cell.Ref{ref}}}
	_, err := Apply(jsonResponse(`{"{x}": 8}`), takes, store)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, ok := store.Get(ref)
	assert.False(t, ok)

	takes[0].Path = value.MustParsePath(`["{x}"]`)
	_, err = Apply(jsonResponse(`{"{x}": 8}`), takes, store)
	require.NoError(t, err)
	v, _ := store.Get(ref)
	assert.Equal(t, json.Number("8"), v)
}

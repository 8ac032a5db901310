package main

import (
	"testing"

	"foodgram/docs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseDoc = `
paths:
  /recipes/:
    get:
      responses:
        "200": {}
    post:
      responses:
        "201": {}
        "400": {}
  /recipes/{id}/get-link:
    get:
      responses:
        "200": {}
    parameters: []
`

func TestParseSurface(t *testing.T) {
	s, err := parseSurface([]byte(baseDoc))
	require.NoError(t, err)
	require.Len(t, s, 2)
	assert.Len(t, s["/recipes/"], 2)
	assert.Contains(t, s["/recipes/"]["post"], "400")
	assert.NotContains(t, s["/recipes/{id}/get-link"], "parameters")

	_, err = parseSurface([]byte(`info: {title: x}`))
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	base, err := parseSurface([]byte(baseDoc))
	require.NoError(t, err)

	revision, err := parseSurface([]byte(`{"paths": {"/recipes/": {"post": {"responses": {"201": {}}}}}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"removed operation: GET /recipes/",
		"removed path: /recipes/{id}/get-link",
		"removed response code: POST /recipes/ -> 400",
	}, compare(base, revision))
	assert.Empty(t, compare(base, base))
}

func TestCompiledDocumentParses(t *testing.T) {
	s, err := parseSurface([]byte(docs.SwaggerInfo.ReadDoc()))
	require.NoError(t, err)
	assert.NotEmpty(t, s)
	assert.Empty(t, compare(s, s))
}

package httpx_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklet-io/tracklet/internal/apperr"
	"github.com/tracklet-io/tracklet/internal/httpx"
)

type decodeTarget struct {
	Arg1      *float64 `json:"arg1"`
	Arg2      *float64 `json:"arg2"`
	Operation string   `json:"operation"`
	UseDB     *bool    `json:"use_db"`
}

func TestDecodeBodyJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(
		`{"arg1": 10, "arg2": 20, "operation": "sum", "use_db": false}`))
	r.Header.Set("Content-Type", "application/json")

	var got decodeTarget
	require.NoError(t, httpx.DecodeBody(r, 1<<20, &got))
	require.NotNil(t, got.Arg1)
	assert.Equal(t, 10.0, *got.Arg1)
	assert.Equal(t, "sum", got.Operation)
	require.NotNil(t, got.UseDB)
	assert.False(t, *got.UseDB)
}

func TestDecodeBodyDefaultsToJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"operation": "div"}`))

	var got decodeTarget
	require.NoError(t, httpx.DecodeBody(r, 1<<20, &got))
	assert.Equal(t, "div", got.Operation)
}

func TestDecodeBodyYAML(t *testing.T) {
	body := "arg1: 10\narg2: 20\noperation: sum\nuse_db: false\n"
	r := httptest.NewRequest("POST", "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-yaml")

	var got decodeTarget
	require.NoError(t, httpx.DecodeBody(r, 1<<20, &got))
	require.NotNil(t, got.Arg1)
	assert.Equal(t, 10.0, *got.Arg1)
	require.NotNil(t, got.Arg2)
	assert.Equal(t, 20.0, *got.Arg2)
	assert.Equal(t, "sum", got.Operation)
	require.NotNil(t, got.UseDB)
	assert.False(t, *got.UseDB)
}

func TestDecodeBodyInvalidJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"arg1": `))
	r.Header.Set("Content-Type", "application/json")

	var got decodeTarget
	err := httpx.DecodeBody(r, 1<<20, &got)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDecodeBodyInvalidYAML(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader("arg1: [unclosed"))
	r.Header.Set("Content-Type", "text/yaml")

	var got decodeTarget
	err := httpx.DecodeBody(r, 1<<20, &got)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDecodeBodyTooLarge(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(
		`{"operation": "`+strings.Repeat("x", 1024)+`"}`))
	r.Header.Set("Content-Type", "application/json")

	var got decodeTarget
	err := httpx.DecodeBody(r, 64, &got)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

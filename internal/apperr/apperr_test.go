package apperr_test

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklet-io/tracklet/internal/apperr"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindValidation, http.StatusBadRequest},
		{apperr.KindAuth, http.StatusUnauthorized},
		{apperr.KindAPI, http.StatusBadGateway},
		{apperr.KindConnection, http.StatusServiceUnavailable},
		{apperr.KindHTTP, http.StatusInternalServerError},
		{apperr.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := apperr.New(tt.kind, "op", "boom")
			assert.Equal(t, tt.want, apperr.StatusCode(err))
		})
	}
}

func TestStatusCodeUnclassified(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, apperr.StatusCode(errors.New("plain")))
}

func TestKindOfWrapped(t *testing.T) {
	inner := apperr.Validation("op", "bad input")
	outer := fmt.Errorf("handler: %w", inner)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(outer))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("underlying")
	err := apperr.Wrap(apperr.KindAPI, "client.Call", "request failed", cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "client.Call")
}

func TestFromTransportTimeout(t *testing.T) {
	urlErr := &url.Error{Op: "Post", URL: "http://localhost:1/x", Err: timeoutErr{}}
	err := apperr.FromTransport("op", urlErr)
	assert.Equal(t, apperr.KindAPI, apperr.KindOf(err))
	assert.Equal(t, http.StatusBadGateway, apperr.StatusCode(err))
}

func TestFromTransportRefused(t *testing.T) {
	urlErr := &url.Error{
		Op:  "Post",
		URL: "http://localhost:1/x",
		Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")},
	}
	err := apperr.FromTransport("op", urlErr)
	assert.Equal(t, apperr.KindConnection, apperr.KindOf(err))
	assert.Equal(t, http.StatusServiceUnavailable, apperr.StatusCode(err))
}

func TestFromTransportKeepsClassified(t *testing.T) {
	orig := apperr.Auth("op", "bad token")
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(apperr.FromTransport("other", orig)))
}

func TestFromStatusCarriesDetails(t *testing.T) {
	err := apperr.FromStatus("op", 500, `{"error":"boom"}`)
	assert.Equal(t, apperr.KindAPI, apperr.KindOf(err))
	assert.Equal(t, `{"error":"boom"}`, apperr.DetailsOf(err))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// Package identity is the HTTP client for the external credential
// validator, which exchanges username/password for a user id and an
// access/refresh token pair.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tracklet-io/tracklet/internal/apperr"
	"github.com/tracklet-io/tracklet/internal/model"
)

// Client talks to the credential validator. Safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client for the validator at baseURL. A zero timeout
// defaults to 30 seconds.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// GetToken exchanges user/password for a user id and a token pair via
// POST /get_token. Credentials travel in a Basic auth header.
func (c *Client) GetToken(ctx context.Context, user, password string) (*model.Credentials, error) {
	const op = "identity.GetToken"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/get_token", nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, "create request", err)
	}
	req.SetBasicAuth(user, password)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.FromTransport(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusBadRequest {
		return nil, apperr.Auth(op, "invalid credentials")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.FromStatus(op, resp.StatusCode, readBody(resp.Body))
	}

	var creds model.Credentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return nil, apperr.Wrap(apperr.KindAPI, op, "decode response", err)
	}
	if creds.TokenAccess == "" {
		return nil, apperr.New(apperr.KindAPI, op, "validator returned no access token")
	}
	return &creds, nil
}

// RefreshToken exchanges a refresh token for a fresh token pair via
// POST /refresh_token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	const op = "identity.RefreshToken"

	body, err := json.Marshal(map[string]string{"token_refresh": refreshToken})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/refresh_token", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.FromTransport(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusBadRequest {
		return nil, apperr.Auth(op, "refresh token rejected")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.FromStatus(op, resp.StatusCode, readBody(resp.Body))
	}

	var pair model.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, apperr.Wrap(apperr.KindAPI, op, "decode response", err)
	}
	if pair.TokenAccess == "" {
		return nil, apperr.New(apperr.KindAPI, op, "validator returned no access token")
	}
	return &pair, nil
}

func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return fmt.Sprintf("<read error: %v>", err)
	}
	return string(b)
}

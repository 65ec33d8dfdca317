// Package authclient validates bearer tokens against the accounts service.
package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Validator resolves a bearer token to a user id.
type Validator interface {
	ValidateToken(ctx context.Context, token string) (int64, error)
}

var ErrInvalidToken = errors.New("invalid token")

// Client talks to the accounts service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Client for the accounts service base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// ValidateToken asks the accounts service who the token belongs to.
func (c *Client) ValidateToken(ctx context.Context, token string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/me", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return 0, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("auth service status %d", resp.StatusCode)
	}

	var out struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode auth response: %w", err)
	}
	if out.ID == 0 {
		return 0, ErrInvalidToken
	}
	return out.ID, nil
}

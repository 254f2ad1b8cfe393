// Package access holds the HTTP client for the external access-approval
// oracle. The oracle decides whether a user may request a license at all;
// this subsystem only consumes the boolean and must consult it fresh on
// every issuance, never caching a verdict.
package access

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client queries the access-approval service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type accessResponse struct {
	Allowed bool `json:"allowed"`
}

// HasValidAccess reports whether userID currently holds an approved access
// grant for uploadID. Any transport or decoding failure is returned as an
// error so the caller fails closed rather than guessing.
func (c *Client) HasValidAccess(ctx context.Context, uploadID, userID string) (bool, error) {
	u := fmt.Sprintf("%s/api/access/%s/%s",
		c.baseURL, url.PathEscape(uploadID), url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("access oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("access oracle: unexpected status %d", resp.StatusCode)
	}

	var body accessResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("access oracle: %w", err)
	}

	return body.Allowed, nil
}

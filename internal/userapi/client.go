// Package userapi resolves users against the user service over HTTP.
package userapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tokenforge/authd"
)

// Client implements authd.UserDirectory against the user service's
// GET /users/{idOrEmail} endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// NewWithClient is for tests and callers with their own transport.
func NewWithClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, http: httpClient}
}

func (c *Client) GetUser(ctx context.Context, idOrEmail string) (authd.User, error) {
	endpoint := c.baseURL + "/users/" + url.PathEscape(idOrEmail)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return authd.User{}, fmt.Errorf("build user request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return authd.User{}, fmt.Errorf("query user service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return authd.User{}, authd.ErrUserNotFound
	default:
		return authd.User{}, fmt.Errorf("user service responded %d", resp.StatusCode)
	}

	var user authd.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return authd.User{}, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/puzzlegame/internal/services/owner"
)

// Client is an HTTP client for the API
type Client struct {
	baseURL    string
	token      string
	ownerToken string
	onOwner    func(string) error
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken updates the client's token
func (c *Client) SetToken(token string) {
	c.token = token
}

// SetOwnerToken sets the anonymous owner token sent with each request.
// save is called whenever the server issues a new one.
func (c *Client) SetOwnerToken(token string, save func(string) error) {
	c.ownerToken = token
	c.onOwner = save
}

// APIError represents an error response from the API
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an API error
type ErrorResponse struct {
	Error APIError `json:"error"`
}

func (e *APIError) String() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// NewRequest builds a request carrying the client's credentials
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.ownerToken != "" {
		req.AddCookie(&http.Cookie{Name: owner.CookieName, Value: c.ownerToken})
	}
	return req, nil
}

// Do performs an HTTP request
func (c *Client) Do(method, path string, body, result any) error {
	_, err := c.do(method, path, body, result)
	return err
}

func (c *Client) do(method, path string, body, result any) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := c.NewRequest(context.Background(), method, path, bodyReader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.captureOwner(resp); err != nil {
		return resp.StatusCode, err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	// Check for error responses
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Code != "" {
			return resp.StatusCode, fmt.Errorf("%s", errResp.Error.String())
		}
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// captureOwner keeps the owner token the server mints for anonymous callers
func (c *Client) captureOwner(resp *http.Response) error {
	for _, cookie := range resp.Cookies() {
		if cookie.Name != owner.CookieName || cookie.Value == "" || cookie.Value == c.ownerToken {
			continue
		}
		c.ownerToken = cookie.Value
		if c.onOwner != nil {
			if err := c.onOwner(cookie.Value); err != nil {
				return fmt.Errorf("failed to save owner token: %w", err)
			}
		}
	}
	return nil
}

// Get performs a GET request
func (c *Client) Get(path string, result any) error {
	return c.Do(http.MethodGet, path, nil, result)
}

// Post performs a POST request
func (c *Client) Post(path string, body, result any) error {
	return c.Do(http.MethodPost, path, body, result)
}

// postStatus performs a POST request and also returns the HTTP status
func (c *Client) postStatus(path string, body, result any) (int, error) {
	return c.do(http.MethodPost, path, body, result)
}

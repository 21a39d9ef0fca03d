// Package browser is the boundary to the external rendering engine: a
// headless Chromium process managed in Docker, discovered over the
// DevTools HTTP endpoint, and driven page-by-page through a sequential
// CDP websocket session.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentinel errors for the browser package.
var (
	// ErrUnhealthy is returned when the DevTools health check fails.
	ErrUnhealthy = errors.New("browser health check failed")

	// ErrSessionClosed is returned when operations are attempted on a
	// closed session.
	ErrSessionClosed = errors.New("session closed")
)

// Client is a DevTools HTTP discovery client.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a DevTools client for the given base URL.
func NewClient(rawURL string) *Client {
	return &Client{
		url: strings.TrimSuffix(rawURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Target describes one debuggable page exposed by the browser.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Version reports the browser build behind the DevTools endpoint.
type Version struct {
	Browser         string `json:"Browser"`
	ProtocolVersion string `json:"Protocol-Version"`
	WebSocketURL    string `json:"webSocketDebuggerUrl"`
}

// HealthCheck verifies the DevTools endpoint responds.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.Version(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	return nil
}

// Version fetches the browser version descriptor.
func (c *Client) Version(ctx context.Context) (*Version, error) {
	var v Version
	if err := c.get(ctx, "/json/version", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListTargets returns the pages currently open in the browser.
func (c *Client) ListTargets(ctx context.Context) ([]Target, error) {
	var targets []Target
	if err := c.get(ctx, "/json/list", &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// NewTarget opens a fresh blank page and returns its descriptor. Each
// capture worker gets its own target so sessions never share render
// state.
func (c *Client) NewTarget(ctx context.Context) (*Target, error) {
	endpoint := c.url + "/json/new?" + url.Values{"url": {"about:blank"}}.Encode()

	// Chrome 111+ requires PUT for target creation.
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("devtools error (status %d): %s", resp.StatusCode, string(body))
	}

	var t Target
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("failed to parse target: %w", err)
	}
	if t.WebSocketDebuggerURL == "" {
		return nil, fmt.Errorf("target %s has no websocket debugger URL", t.ID)
	}
	return &t, nil
}

// CloseTarget closes the page with the given target ID.
func (c *Client) CloseTarget(ctx context.Context, targetID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/json/close/"+targetID, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to close target %s (status %d): %s", targetID, resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("devtools error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse devtools response: %w", err)
	}
	return nil
}

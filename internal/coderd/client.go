// Package coderd is a minimal client for the Coder v2 REST API, covering the
// endpoints the audit reports consume: audit logs, workspaces, users, and the
// insights summaries. Authentication is a session token sent as the
// Coder-Session-Token header on every request.
package coderd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config carries everything the client needs; it is resolved once per process
// invocation and threaded in here, never read from globals.
type Config struct {
	// URL is the deployment base, e.g. https://coder.example.com.
	URL string
	// Token is the session token for the Coder-Session-Token header.
	Token string
	// Timeout bounds each individual HTTP request.
	Timeout time.Duration
}

// Client talks to one Coder deployment.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a Client from cfg. The base URL is normalised (trailing slash
// stripped, scheme defaulted to https) so callers can pass a bare FQDN.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.URL)
	if base == "" {
		return nil, fmt.Errorf("coder URL is required (set CODER_URL or server.url in config)")
	}
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	base = strings.TrimSuffix(base, "/")
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid coder URL %q: %w", cfg.URL, err)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("coder session token is required (set CODER_SESSION_TOKEN or create audit-token.txt)")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: base,
		token:   strings.TrimSpace(cfg.Token),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// BaseURL returns the normalised deployment URL.
func (c *Client) BaseURL() string { return c.baseURL }

// APIError is a non-2xx response from the Coder API. The body is kept
// (truncated) for the error message; callers can switch on StatusCode.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if len(msg) > 240 {
		msg = msg[:240]
	}
	if msg == "" {
		return fmt.Sprintf("coder API %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("coder API %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) putJSON(ctx context.Context, path string, payload any, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, nil, payload, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, full, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Coder-Session-Token", c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("coder API %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("coder API %s %s: read response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("coder API %s %s: parse response: %w", method, path, err)
	}
	return nil
}

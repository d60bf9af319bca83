// Package review talks to the remote code-review service: one JSON POST per
// analysis, no retries, no caching.
package review

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Path is the review endpoint, relative to the service base URL.
const Path = "/api/v1/review/"

const userAgent = "reviewpanel/1.0"

// maxResponseBytes caps how much of a response body is read.
var maxResponseBytes int64 = 8 << 20

// Request is the JSON body sent to the review service.
type Request struct {
	CodeSnippet string `json:"code_snippet"`
	Language    string `json:"language"`
	FilePath    string `json:"file_path"`
	Model       string `json:"model,omitempty"`
}

// StatusError reports a non-2xx response. Body is the raw response text,
// cut at maxResponseBytes.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("review service returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("review service returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Client posts code to the review service.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the default client's overall request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{
			Timeout: 2 * time.Minute,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint is the full review URL.
func (c *Client) Endpoint() string {
	return c.baseURL + Path
}

// Review sends one request and returns the decoded JSON body unmodified.
// A non-2xx status yields a *StatusError.
func (c *Client) Review(ctx context.Context, r Request) (any, error) {
	if c.baseURL == "" {
		return nil, errors.New("review service endpoint is not configured")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode review request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create review request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	started := time.Now()
	c.log.Debug("review request",
		zap.String("endpoint", c.Endpoint()),
		zap.String("language", r.Language),
		zap.String("model", r.Model),
		zap.Int("bytes", len(r.CodeSnippet)))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("review request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read review response: %w", err)
	}
	oversized := int64(len(raw)) > maxResponseBytes
	if oversized {
		raw = raw[:maxResponseBytes]
	}
	c.log.Debug("review response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("bytes", len(raw)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if oversized {
		return nil, fmt.Errorf("review response exceeds %d bytes", maxResponseBytes)
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode review response: %w", err)
	}
	return parsed, nil
}

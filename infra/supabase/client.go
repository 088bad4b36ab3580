package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	maxResponseBytes  = 8 << 20  // 8 MiB
	maxErrorBodyBytes = 32 << 10 // 32 KiB
)

// Client is the main Supabase client.
type Client struct {
	config     Config
	httpClient *http.Client
	metrics    *Metrics

	// Derived values
	baseURL    string
	restURL    string
	authURL    string
	storageURL string

	// Sub-clients
	auth     *AuthClient
	database *DatabaseClient
	storage  *StorageClient
}

// New creates a new Supabase client.
func New(cfg Config) (*Client, error) {
	if cfg.ProjectURL == "" {
		return nil, fmt.Errorf("project URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("anon key is required")
	}

	baseURL := strings.TrimRight(cfg.ProjectURL, "/")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid project URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid project URL: %q", cfg.ProjectURL)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
		if cfg.Retry != nil {
			httpClient.Transport = NewRetryTransport(nil, *cfg.Retry)
		}
	}

	c := &Client{
		config:     cfg,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
		baseURL:    baseURL,
		restURL:    baseURL + "/rest/v1",
		authURL:    baseURL + "/auth/v1",
		storageURL: baseURL + "/storage/v1",
	}

	c.auth = &AuthClient{client: c}
	c.database = &DatabaseClient{client: c}
	c.storage = &StorageClient{client: c}

	return c, nil
}

// Auth returns the auth client.
func (c *Client) Auth() *AuthClient {
	return c.auth
}

// Database returns the database client.
func (c *Client) Database() *DatabaseClient {
	return c.database
}

// Storage returns the storage client.
func (c *Client) Storage() *StorageClient {
	return c.storage
}

// =============================================================================
// Internal HTTP Methods
// =============================================================================

// request performs an HTTP request. The anon key is always sent as apikey;
// accessToken, when set, replaces it as the bearer credential so row-level
// security applies to the signed-in user.
func (c *Client) request(ctx context.Context, service, method, urlPath string, body []byte, headers map[string]string, accessToken string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlPath, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	for k, v := range c.buildHeaders(headers) {
		req.Header.Set(k, v)
	}
	bearer := c.config.AnonKey
	if accessToken != "" {
		bearer = accessToken
	}
	req.Header.Set("apikey", c.config.AnonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(service, method, 0, time.Since(start))
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.observe(service, method, resp.StatusCode, time.Since(start))

	limit := int64(maxResponseBytes)
	if resp.StatusCode >= 400 {
		limit = maxErrorBodyBytes
	}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	return respBody, resp.StatusCode, nil
}

// buildHeaders builds request headers.
func (c *Client) buildHeaders(extra map[string]string) map[string]string {
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}

	for k, v := range c.config.DefaultHeaders {
		headers[k] = v
	}

	for k, v := range extra {
		headers[k] = v
	}

	return headers
}

// parseError parses an error response. GoTrue and PostgREST disagree on the
// field carrying the message, so the first non-empty one wins.
func parseError(body []byte, statusCode int) error {
	if !gjson.ValidBytes(body) {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(statusCode)
		}
		return &Error{
			Code:       "unknown",
			Message:    msg,
			StatusCode: statusCode,
		}
	}

	res := gjson.ParseBytes(body)
	msg := firstNonEmpty(
		res.Get("message").String(),
		res.Get("msg").String(),
		res.Get("error_description").String(),
		res.Get("error").String(),
	)
	if msg == "" {
		msg = http.StatusText(statusCode)
	}

	return &Error{
		Code:       firstNonEmpty(res.Get("error_code").String(), res.Get("code").String()),
		Message:    msg,
		Details:    res.Get("details").String(),
		Hint:       res.Get("hint").String(),
		StatusCode: statusCode,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

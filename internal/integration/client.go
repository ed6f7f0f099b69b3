// Package integration talks to the external transaction providers and
// normalizes their payloads into ledger transactions.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the total request timeout.
	DefaultTimeout = 15 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 5 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 5 * time.Second
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// maxErrorBody bounds how much of a failed response is kept in the error.
	maxErrorBody = 2048
	// maxResponseBody bounds decoded provider payloads.
	maxResponseBody = 10 << 20

	userAgent = "Maaser-Sync/1.0"
)

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("integration request failed (%d): %s", e.StatusCode, e.Body)
}

// Retryable reports whether the provider may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500
}

// NewHTTPClient creates an HTTP client for provider APIs.
// Redirects are not followed.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: TLSHandshakeTimeout,
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Request describes one provider call. JSON and Form are mutually exclusive.
type Request struct {
	Method  string
	URL     string
	Query   url.Values
	Headers map[string]string
	JSON    any
	Form    url.Values
}

// Client performs provider requests with bounded retries.
type Client struct {
	http       *http.Client
	logger     *slog.Logger
	maxRetries int
	backoff    func(attempt int) time.Duration
}

// NewClient creates a provider client. A nil httpClient uses NewHTTPClient.
func NewClient(httpClient *http.Client, maxRetries int, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultTimeout)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		http:       httpClient,
		logger:     logger.With("component", "integration.client"),
		maxRetries: maxRetries,
		backoff:    NextRetryDelay,
	}
}

// Do sends the request and decodes a JSON response into out.
// A 204 response or a nil out skips decoding.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	body, contentType, err := encodeBody(r)
	if err != nil {
		return err
	}

	target, err := buildURL(r.URL, r.Query)
	if err != nil {
		return err
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			c.logger.Debug("retrying provider request",
				"host", hostOf(target),
				"attempt", attempt,
				"delay_ms", delay.Milliseconds(),
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = c.once(ctx, method, target, body, contentType, r.Headers, out)
		if lastErr == nil || !isRetryable(ctx, lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func (c *Client) once(ctx context.Context, method, target string, body []byte, contentType string, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if resp.StatusCode == http.StatusNoContent || out == nil {
		// Drain body to allow connection reuse
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// isRetryable reports whether err is a 5xx or a transport failure.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func encodeBody(r Request) ([]byte, string, error) {
	switch {
	case r.Form != nil:
		return []byte(r.Form.Encode()), "application/x-www-form-urlencoded", nil
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return data, "application/json", nil
	default:
		return nil, "", nil
	}
}

func buildURL(base string, query url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid provider url: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// hostOf returns the host of a URL for logging. Paths and queries may carry
// identifiers and are never logged.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid"
	}
	return u.Host
}

// joinURL appends a path to a provider base URL.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// bearer formats an Authorization header value, or "" when token is empty.
func bearer(token string) string {
	if token == "" {
		return ""
	}
	return "Bearer " + token
}

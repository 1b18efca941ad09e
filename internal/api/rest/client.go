// Package rest implements api.NotificationAPI over the dashboard's JSON
// REST endpoints.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/evaldash/internal/api"
)

// maxPages stops a misbehaving server from paging forever.
const maxPages = 100

// Client is a thin HTTP client for the notifications API. It handles
// Bearer token authentication, JSON marshaling, cursor pagination and
// automatic retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets how many times a rate-limited request is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithLogger sets the logger used for retry and pagination diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new REST client. baseURL is the root of the API
// host (e.g. https://dashboard.example.org). An empty token disables the
// Authorization header.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchNotifications follows Next cursors until the full set is read.
func (c *Client) FetchNotifications(
	ctx context.Context,
	scope api.UserScope,
) ([]api.RawNotification, error) {
	q := url.Values{}
	if scope.UserID != "" {
		q.Set("user_id", scope.UserID)
	}
	if scope.Role != "" {
		q.Set("role", scope.Role)
	}
	for _, id := range scope.SchoolIDs {
		q.Add("school_id", id)
	}

	var all []api.RawNotification
	for page := 0; ; page++ {
		if page == maxPages {
			return nil, fmt.Errorf("notifications: more than %d pages", maxPages)
		}

		path := NotificationsPath
		if enc := q.Encode(); enc != "" {
			path += "?" + enc
		}

		var resp ListResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Notifications...)

		if resp.Next == "" {
			break
		}
		c.logger.Debug("following notifications cursor",
			zap.Int("page", page+1),
			zap.String("cursor", resp.Next))
		q.Set("cursor", resp.Next)
	}

	return all, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, itemPath(id, "read"), nil, nil)
}

func (c *Client) MarkUnread(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, itemPath(id, "unread"), nil, nil)
}

func (c *Client) Archive(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, itemPath(id, "archive"), nil, nil)
}

func (c *Client) MarkAllRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, ReadAllPath, ReadAllRequest{IDs: ids}, nil)
}

func itemPath(id, action string) string {
	return NotificationsPath + "/" + url.PathEscape(id) + "/" + action
}

// do builds the request, handles auth, rate limiting with exponential
// backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	requestID := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-Id", requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)
			c.logger.Warn("rate limited, backing off",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		if err := statusError(resp.StatusCode, method, path, respBody, c.baseURL); err != nil {
			return err
		}

		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// statusError maps a non-2xx response onto the api error types.
func statusError(status int, method, path string, body []byte, baseURL string) error {
	if status >= 200 && status < 300 {
		return nil
	}

	msg := strings.TrimSpace(string(body))
	var envelope ErrorResponse
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		msg = envelope.Error
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &api.AuthError{
			Backend: "rest",
			Message: fmt.Sprintf("%d from %s: %s", status, baseURL, msg),
		}
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, api.ErrNotFound)
	}

	return &StatusError{Code: status, Method: method, Path: path, Message: msg}
}

// StatusError is returned for unexpected non-2xx responses.
type StatusError struct {
	Code    int
	Method  string
	Path    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.Code, e.Method, e.Path, e.Message)
}

// IsServerError reports whether err is a 5xx StatusError.
func IsServerError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 500
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

var _ api.NotificationAPI = (*Client)(nil)

// Package rest is the request/response client for the backend's chat and
// notification endpoints.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matheus3301/socialsync/internal/logging"
	"github.com/matheus3301/socialsync/internal/model"
	"go.uber.org/zap"
)

const maxErrorBody = 4 << 10

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: http %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the backend REST surface.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a client for baseURL. timeout bounds every request; zero means
// only the caller's context applies.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logging.OrNop(logger),
	}
}

// BaseURL returns the backend URL the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// ListUsers returns every registered user in server order.
func (c *Client) ListUsers(ctx context.Context) ([]model.Identity, error) {
	var users []model.Identity
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListMessages returns the conversation between a and b, oldest first.
func (c *Client) ListMessages(ctx context.Context, a, b string) ([]model.Message, error) {
	var msgs []model.Message
	p := "/messages/" + url.PathEscape(a) + "/" + url.PathEscape(b)
	if err := c.do(ctx, http.MethodGet, p, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListNotifications returns the notifications of uid.
func (c *Client) ListNotifications(ctx context.Context, uid string) ([]model.Notification, error) {
	var items []model.Notification
	if err := c.do(ctx, http.MethodGet, "/notifications/"+url.PathEscape(uid), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// MarkNotificationsRead marks every notification of uid read on the server.
func (c *Client) MarkNotificationsRead(ctx context.Context, uid string) error {
	return c.do(ctx, http.MethodPut, "/notifications/"+url.PathEscape(uid)+"/read", nil, nil)
}

// UnreadNotificationCount returns the number of unread notifications of uid.
func (c *Client) UnreadNotificationCount(ctx context.Context, uid string) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/notifications/"+url.PathEscape(uid)+"/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = strings.NewReader(string(data))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("rest call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

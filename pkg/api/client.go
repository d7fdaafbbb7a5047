// Package api is the HTTP client for the radiolink backend: login,
// registration, profile, join-token issuing and the join-log report.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NicolasHaas/radiolink/pkg/model"
	"github.com/NicolasHaas/radiolink/pkg/version"
)

const maxBodySize = 1 << 20

// Client talks to the backend REST API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the overall request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for the backend at baseURL (e.g. "https://radio.example").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string { return c.baseURL }

// JoinGrant is the successful response of the token endpoint.
type JoinGrant struct {
	Token string `json:"token"`
	Room  string `json:"room,omitempty"`
}

// LogPage is one page of the join-log report.
type LogPage struct {
	Count    int             `json:"count"`
	Next     string          `json:"next"`
	Previous string          `json:"previous"`
	Results  []model.JoinLog `json:"results"`
}

// Login exchanges username/password for an access credential.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Access string `json:"access"`
	}
	status, body, err := c.do(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	if status/100 != 2 {
		return "", decodeFormError(status, body, "Login failed")
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Access == "" {
		return "", &FormError{Status: status, Detail: "Login failed"}
	}
	return out.Access, nil
}

// Register creates an account. The backend answers 201 on success.
func (c *Client) Register(ctx context.Context, reg model.Registration) error {
	status, body, err := c.do(ctx, http.MethodPost, "/api/auth/register", "", reg)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return decodeFormError(status, body, "Registration failed")
	}
	return nil
}

// Me fetches the identity behind bearer. A 401 yields ErrUnauthorized.
func (c *Client) Me(ctx context.Context, bearer string) (*model.Identity, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/auth/me", bearer, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if status/100 != 2 {
		return nil, &StatusError{Status: status, Message: messageFrom(body)}
	}
	var id model.Identity
	if err := json.Unmarshal(body, &id); err != nil {
		return nil, &NetworkError{Op: "decode identity", Err: err}
	}
	return &id, nil
}

// RequestJoinToken asks the backend for a realtime join token for frequency.
// Non-success responses and responses without a token return *StatusError
// with the server's "error" message (empty if none was sent).
func (c *Client) RequestJoinToken(ctx context.Context, bearer string, frequency float64) (*JoinGrant, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/api/radio/token", bearer, map[string]float64{
		"frequency": frequency,
	})
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		return nil, &StatusError{Status: status, Message: messageFrom(body)}
	}
	var grant JoinGrant
	if err := json.Unmarshal(body, &grant); err != nil || grant.Token == "" {
		return nil, &StatusError{Status: status, Message: messageFrom(body)}
	}
	return &grant, nil
}

// JoinLogs fetches one page (1-based) of the join-log report. Older backends
// only serve the unpaginated legacy route, which is tried on 404.
func (c *Client) JoinLogs(ctx context.Context, bearer string, page int) (*LogPage, error) {
	path := "/api/radio/logs"
	if page > 1 {
		path += "?page=" + strconv.Itoa(page)
	}
	status, body, err := c.do(ctx, http.MethodGet, path, bearer, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		slog.Debug("join logs route missing, trying legacy route")
		status, body, err = c.do(ctx, http.MethodGet, "/api/radio/logs/room-joins", bearer, nil)
		if err != nil {
			return nil, err
		}
	}
	if status == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if status/100 != 2 {
		return nil, &StatusError{Status: status, Message: messageFrom(body)}
	}
	return decodeLogPage(body)
}

func decodeLogPage(body []byte) (*LogPage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var logs []model.JoinLog
		if err := json.Unmarshal(trimmed, &logs); err != nil {
			return nil, &NetworkError{Op: "decode join logs", Err: err}
		}
		return &LogPage{Count: len(logs), Results: logs}, nil
	}
	var page LogPage
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, &NetworkError{Op: "decode join logs", Err: err}
	}
	return &page, nil
}

// do performs one JSON request and returns status and raw body.
func (c *Client) do(ctx context.Context, method, path, bearer string, payload any) (int, []byte, error) {
	u := c.baseURL + path

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("api: encode %s: %w", path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("api: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, &NetworkError{Op: "read " + path, Err: err}
	}
	slog.Debug("api response", "method", method, "path", path, "status", resp.StatusCode)
	return resp.StatusCode, body, nil
}

func decodeFormError(status int, body []byte, fallback string) error {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		var s string
		if json.Unmarshal(body, &s) == nil && s != "" {
			return &FormError{Status: status, Detail: s}
		}
		return &FormError{Status: status, Detail: fallback}
	}
	return newFormError(status, m, fallback)
}

// messageFrom extracts "error" or "detail" from a JSON error body.
func messageFrom(body []byte) string {
	var m struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	if m.Error != "" {
		return m.Error
	}
	return m.Detail
}

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

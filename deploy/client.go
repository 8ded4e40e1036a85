// Package deploy pushes the bot's files to a hosted repl through the Replit
// REST API.
package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m3rciful/storybot/core/buildinfo"
	"github.com/m3rciful/storybot/core/logger"
)

// DefaultBaseURL is the Replit API root.
const DefaultBaseURL = "https://replit.com/api/v1"

const (
	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 1 << 20
)

// Files maps a path inside the repl to the file's content.
type Files map[string]string

// CreateRequest is the body of a create call.
type CreateRequest struct {
	Title     string `json:"title"`
	Language  string `json:"language"`
	IsPrivate bool   `json:"isPrivate"`
	Files     Files  `json:"files"`
}

type updateRequest struct {
	Files Files `json:"files"`
}

// Repl is the subset of the API's repl object the tool reports.
type Repl struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Client calls the Replit API with a bearer token. Calls are never retried.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	scrubber *strings.Replacer
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient returns a Client authenticated with token.
func NewClient(token string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	c := &Client{
		baseURL:  DefaultBaseURL,
		token:    token,
		http:     &http.Client{Timeout: defaultTimeout},
		scrubber: strings.NewReplacer(token, "<redacted>"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Create makes a new repl. Only 201 Created counts as success.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Repl, error) {
	return c.do(ctx, "create", http.MethodPost, "/repls", req, http.StatusCreated)
}

// Update replaces the files of repl id. Only 200 OK counts as success.
func (c *Client) Update(ctx context.Context, id string, files Files) (*Repl, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &Error{Op: "update", Err: fmt.Errorf("empty repl id")}
	}
	repl, err := c.do(ctx, "update", http.MethodPatch, "/repls/"+url.PathEscape(id), updateRequest{Files: files}, http.StatusOK)
	if err != nil {
		return nil, err
	}
	if repl.ID == "" {
		repl.ID = id
	}
	return repl, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, want int) (*Repl, error) {
	start := time.Now()
	data, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "storybot-deploy/"+buildinfo.Version)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Err: c.scrub(err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	logger.Deploy.LogAttrs(ctx, slog.LevelDebug, "response",
		slog.String("event", "deploy.response"),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("http_code", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != want {
		return nil, &Error{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			Err:        fmt.Errorf("%w: want %d", ErrUnexpectedStatus, want),
		}
	}

	var repl Repl
	if len(bytes.TrimSpace(raw)) == 0 {
		return &repl, nil
	}
	if err := json.Unmarshal(raw, &repl); err != nil {
		return nil, &Error{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return &repl, nil
}

func (c *Client) scrub(err error) error {
	msg := c.scrubber.Replace(err.Error())
	if msg == err.Error() {
		return err
	}
	return &scrubbedError{msg: msg, err: err}
}

type scrubbedError struct {
	msg string
	err error
}

func (e *scrubbedError) Error() string { return e.msg }
func (e *scrubbedError) Unwrap() error { return e.err }

package threads

import (
	"bytes"
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

const (
	DefaultBaseURL = "https://www.threads.net/api/v1"
	DefaultTimeout = 10 * time.Second
)

// Post is a single thread as returned by the platform.
type Post struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// API is the platform capability the bot consumes.
type API interface {
	ResolveHandle(ctx context.Context, username string) (string, error)
	ListRecentPosts(ctx context.Context, userID string, count int) ([]Post, error)
	SubmitReply(ctx context.Context, postID, text string) error
}

// TransportError covers every failure talking to the platform:
// network errors, timeouts, non-2xx statuses and malformed bodies.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("threads %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("threads %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Client talks to the Threads REST API with a bearer token.
type Client struct {
	baseURL string
	http    *http.Client
}

type authTransport struct {
	rt    http.RoundTripper
	token string
}

func (t authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cl := req.Clone(req.Context())
	cl.Header.Set("Authorization", "Bearer "+t.token)
	cl.Header.Set("Content-Type", "application/json")
	return t.rt.RoundTrip(cl)
}

var _ API = (*Client)(nil)

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: authTransport{rt: http.DefaultTransport, token: apiKey},
		},
	}
}

func (c *Client) ResolveHandle(ctx context.Context, username string) (string, error) {
	q := url.Values{"username": {username}}
	var out struct {
		Data struct {
			User struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := c.do(ctx, "resolve handle", http.MethodGet, "/users/web_profile?"+q.Encode(), nil, &out); err != nil {
		return "", err
	}
	if out.Data.User.ID == "" {
		return "", &TransportError{Op: "resolve handle", Err: fmt.Errorf("no user id for %q", username)}
	}
	return out.Data.User.ID, nil
}

func (c *Client) ListRecentPosts(ctx context.Context, userID string, count int) ([]Post, error) {
	q := url.Values{"count": {fmt.Sprint(count)}}
	var out struct {
		Data struct {
			Threads []Post `json:"threads"`
		} `json:"data"`
	}
	path := "/users/" + url.PathEscape(userID) + "/threads?" + q.Encode()
	if err := c.do(ctx, "list posts", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data.Threads, nil
}

func (c *Client) SubmitReply(ctx context.Context, postID, text string) error {
	body := map[string]string{
		"text":     text,
		"reply_to": postID,
	}
	return c.do(ctx, "submit reply", http.MethodPost, "/text", body, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(msg)))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

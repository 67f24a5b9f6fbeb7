// Package client talks to a designscan server over HTTP and WebSocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/designscan/internal/api"
	"github.com/raphaelgruber/designscan/internal/jobs"
	"github.com/raphaelgruber/designscan/internal/models"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// ErrIndexUnavailable is returned when the server has no frame index configured.
var ErrIndexUnavailable = errors.New("frame index not configured on server")

// Client is an HTTP client for the designscan API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client. An empty baseURL falls back to DESIGNSCAN_SERVER_URL, then localhost:8484.
// DESIGNSCAN_CLIENT_TIMEOUT overrides the request timeout (default 30s).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("DESIGNSCAN_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}

	timeout := 30 * time.Second
	if t := os.Getenv("DESIGNSCAN_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StartJob submits a Figma URL for analysis.
func (c *Client) StartJob(ctx context.Context, req api.StartRequest) (*models.Job, error) {
	var job models.Job
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &job); err != nil {
		return nil, fmt.Errorf("start job: %w", err)
	}
	return &job, nil
}

// GetJob returns one job.
func (c *Client) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

// ListJobs returns up to limit jobs, newest first. limit <= 0 uses the server default.
func (c *Client) ListJobs(ctx context.Context, limit int) ([]models.Job, error) {
	path := "/api/jobs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var list []models.Job
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return list, nil
}

// DeleteJob removes a job from the server.
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	var resp api.DeleteResponse
	if err := c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, &resp); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

// Search runs a semantic query over indexed frames.
func (c *Client) Search(ctx context.Context, query string, limit int) (*api.SearchResponse, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp api.SearchResponse
	if err := c.do(ctx, http.MethodGet, "/api/search?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return &resp, nil
}

// Watch streams job snapshots to onSnapshot until the terminal snapshot arrives.
// It returns the last job seen. Returning an error from onSnapshot aborts the stream.
func (c *Client) Watch(ctx context.Context, id string, onSnapshot func(jobs.Snapshot) error) (*models.Job, error) {
	wsURL, err := c.wsURL("/api/jobs/" + url.PathEscape(id) + "/events")
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("watch job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	var once sync.Once
	closeConn := func() { once.Do(func() { conn.Close() }) }
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	var last *models.Job
	for {
		var snap jobs.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseGoingAway) {
				return last, fmt.Errorf("watch job %s: %w", id, ErrNotFound)
			}
			return last, fmt.Errorf("read event: %w", err)
		}

		job := snap.Job
		last = &job
		if onSnapshot != nil {
			if err := onSnapshot(snap); err != nil {
				return last, err
			}
		}
		if snap.Kind == jobs.SnapshotTerminal {
			return last, nil
		}
	}
}

func (c *Client) wsURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		msg := serverError(data)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		case http.StatusServiceUnavailable:
			return fmt.Errorf("%w: %s", ErrIndexUnavailable, msg)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, msg)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func serverError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

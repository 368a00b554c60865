package api

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

	"clipforge/internal/queue"
	"clipforge/internal/services"
)

// Client is an HTTP client for the daemon API, used by the CLI.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient constructs a client for the given base URL. token may be
// empty when the daemon does not require authentication.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit enqueues a conversion task.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*queue.Task, error) {
	var task queue.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Status fetches a task with derived timing information.
func (c *Client) Status(ctx context.Context, id string) (TaskStatus, error) {
	var status TaskStatus
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &status)
	return status, err
}

// List fetches tasks, optionally filtered by status.
func (c *Client) List(ctx context.Context, statuses ...queue.Status) ([]*queue.Task, error) {
	path := "/api/tasks"
	if len(statuses) > 0 {
		parts := make([]string, 0, len(statuses))
		for _, status := range statuses {
			parts = append(parts, string(status))
		}
		path += "?status=" + url.QueryEscape(strings.Join(parts, ","))
	}
	var payload struct {
		Tasks []*queue.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Tasks, nil
}

// Result fetches the final report of a completed task.
func (c *Client) Result(ctx context.Context, id string) (map[string]any, error) {
	var report map[string]any
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id)+"/result", nil, &report)
	return report, err
}

// Cancel requests cancellation of a task.
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/cancel", nil, nil)
}

// DaemonStatus fetches the combined daemon and queue status payload.
func (c *Client) DaemonStatus(ctx context.Context) (map[string]any, error) {
	var payload map[string]any
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &payload)
	return payload, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return services.Wrap(services.ErrValidation, "api client", "encode request", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return services.Wrap(services.ErrTransport, "api client", "build request", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransport, "api client", method+" "+path,
			"is the daemon running? start it with `clipforge daemon run`", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp, path)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransport, "api client", "decode response", path, err)
	}
	return nil
}

func decodeError(resp *http.Response, path string) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(data))
	}
	if payload.Error == "" {
		payload.Error = resp.Status
	}

	marker := services.ErrTransport
	switch resp.StatusCode {
	case http.StatusNotFound:
		marker = services.ErrNotFound
	case http.StatusBadRequest, http.StatusConflict:
		marker = services.ErrValidation
	}
	return services.Wrap(marker, "api client", path, fmt.Sprintf("%s (%d)", payload.Error, resp.StatusCode), nil)
}

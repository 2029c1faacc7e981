// Package client talks to the task-record service over HTTP. It implements
// board.TaskService so the drag-and-drop controller can run against a remote
// server.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/jay8860/DD-TaskDashboardClone/api"
	"github.com/jay8860/DD-TaskDashboardClone/board"
	"github.com/jay8860/DD-TaskDashboardClone/domain"
	"github.com/jay8860/DD-TaskDashboardClone/due"
)

const defaultTimeout = 30 * time.Second

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, strings.TrimSpace(e.Body))
}

// Unwrap maps well-known status codes onto domain errors.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return domain.ErrTaskNotFound
	case http.StatusConflict:
		return domain.ErrConcurrencyConflict
	}
	return nil
}

// Client wraps http.Client with the task API routes.
type Client struct {
	BaseURL string
	Bearer  string
	HTTP    *http.Client
}

var _ board.TaskService = (*Client)(nil)

// New creates a Client for the server at baseURL.
func New(baseURL, bearer string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Bearer:  bearer,
		HTTP:    &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(msg)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

// FetchTasks returns every task.
func (c *Client) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListTasks returns the annotated listing for the given query parameters
// (agency, status, search, sort, dir).
func (c *Client) ListTasks(ctx context.Context, q url.Values) ([]api.TaskView, error) {
	path := "/api/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var views []api.TaskView
	if err := c.do(ctx, http.MethodGet, path, nil, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// CreateTask stores a new task.
func (c *Client) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	var created domain.Task
	err := c.do(ctx, http.MethodPost, "/api/tasks", t, &created)
	return created, err
}

// UpdateTask applies a partial update and returns the stored task.
func (c *Client) UpdateTask(ctx context.Context, id string, p domain.Patch) (domain.Task, error) {
	var updated domain.Task
	err := c.do(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(id), p, &updated)
	return updated, err
}

type countResponse struct {
	Message string `json:"message"`
	Updated int    `json:"updated"`
}

// BulkUpdateTasks applies a batch of partial updates under a fresh
// idempotency key and returns how many tasks changed.
func (c *Client) BulkUpdateTasks(ctx context.Context, items []domain.BulkItem) (int, error) {
	req, err := c.newRequest(ctx, http.MethodPut, "/api/tasks/bulk/update", map[string]any{"updates": items})
	if err != nil {
		return 0, err
	}
	req.Header.Set("Idempotency-Key", uuid.NewString())
	var resp countResponse
	if err := c.send(req, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

// Reschedule moves the deadlines of several tasks.
func (c *Client) Reschedule(ctx context.Context, r api.RescheduleRequest) (int, error) {
	var resp countResponse
	if err := c.do(ctx, http.MethodPost, "/api/tasks/bulk/reschedule", r, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}

// Board returns the server side projection of the week containing week.
func (c *Client) Board(ctx context.Context, week time.Time, mode board.ViewMode) (board.Board, error) {
	q := url.Values{}
	q.Set("week", domain.FormatDate(week))
	q.Set("view", string(mode))
	var b board.Board
	err := c.do(ctx, http.MethodGet, "/api/board?"+q.Encode(), nil, &b)
	return b, err
}

// Stats returns the dashboard summary.
func (c *Client) Stats(ctx context.Context) (due.Stats, error) {
	var s due.Stats
	err := c.do(ctx, http.MethodGet, "/api/tasks/stats", nil, &s)
	return s, err
}

// ErrStreamClosed is returned by Watch when the server ends the stream.
var ErrStreamClosed = errors.New("event stream closed")

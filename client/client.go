// Package client is a Go client for the task-list API. It mirrors the
// behavior of the web UI: it keeps a local cache of the last fetched list,
// refreshes it after every mutation, and repeats only the title-required
// check before creating a task. The server remains the authority for all
// validation.
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
	"strings"
	"sync"
	"time"

	"github.com/tasklist/tasklist/database"
)

// ErrTitleRequired is returned locally, before any request is made, when a
// task form has a blank title.
var ErrTitleRequired = errors.New("client: task title is required")

// APIError is a non-2xx response decoded from the server's {"error"} body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to a task-list server. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	cache []database.Task
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// ListOptions mirror the query parameters of GET /api/tasks. Empty fields
// are omitted from the query string.
type ListOptions struct {
	Search   string
	Status   string
	Priority string
	Sort     string
}

func (o ListOptions) encode() string {
	q := url.Values{}
	for k, v := range map[string]string{
		"search":   o.Search,
		"status":   o.Status,
		"priority": o.Priority,
		"sort":     o.Sort,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// TaskForm carries the editable fields of a task. All four keys are always
// sent, with explicit nulls for cleared fields, the same way the UI's edit
// dialog submits its form.
type TaskForm struct {
	Title    string  `json:"title"`
	Details  *string `json:"details"`
	Priority *string `json:"priority"`
	DueDate  *string `json:"due_date"`
}

// List fetches tasks matching opts and replaces the local cache.
func (c *Client) List(ctx context.Context, opts ListOptions) ([]database.Task, error) {
	var tasks []database.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks"+opts.encode(), nil, &tasks); err != nil {
		return nil, err
	}
	c.setCache(tasks)
	return tasks, nil
}

// Create validates the title locally, creates the task, and refreshes the
// cached list.
func (c *Client) Create(ctx context.Context, form TaskForm) (database.Task, error) {
	if strings.TrimSpace(form.Title) == "" {
		return database.Task{}, ErrTitleRequired
	}

	var task database.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", form, &task); err != nil {
		return database.Task{}, err
	}
	c.refresh(ctx)
	return task, nil
}

// Update replaces the editable fields of a task and refreshes the cached
// list.
func (c *Client) Update(ctx context.Context, id int64, form TaskForm) (database.Task, error) {
	var task database.Task
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/tasks/%d", id), form, &task); err != nil {
		return database.Task{}, err
	}
	c.refresh(ctx)
	return task, nil
}

// ToggleComplete flips a task's completed flag and applies the server's
// returned record to the cache in place, without refetching the list.
func (c *Client) ToggleComplete(ctx context.Context, id int64) (database.Task, error) {
	var task database.Task
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/tasks/%d/complete", id), nil, &task); err != nil {
		return database.Task{}, err
	}

	c.mu.Lock()
	for i := range c.cache {
		if c.cache[i].ID == task.ID {
			c.cache[i] = task
			break
		}
	}
	c.mu.Unlock()
	return task, nil
}

// DeleteResult is the body of a successful DELETE.
type DeleteResult struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// Delete removes a task and refreshes the cached list.
func (c *Client) Delete(ctx context.Context, id int64) (DeleteResult, error) {
	var result DeleteResult
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", id), nil, &result); err != nil {
		return DeleteResult{}, err
	}
	c.refresh(ctx)
	return result, nil
}

// Cached returns a copy of the last fetched task list. It is advisory: any
// mutation refreshes it from the server.
func (c *Client) Cached() []database.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]database.Task, len(c.cache))
	copy(out, c.cache)
	return out
}

func (c *Client) setCache(tasks []database.Task) {
	c.mu.Lock()
	c.cache = tasks
	c.mu.Unlock()
}

// refresh refetches the unfiltered list after a mutation. A refresh failure
// leaves the previous cache in place; the mutation itself already succeeded.
func (c *Client) refresh(ctx context.Context) {
	var tasks []database.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &tasks); err != nil {
		return
	}
	c.setCache(tasks)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

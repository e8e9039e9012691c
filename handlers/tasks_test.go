package handlers_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklist/tasklist/database"
	"github.com/tasklist/tasklist/handlers"
	"github.com/tasklist/tasklist/services"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := database.InitDB(filepath.Join(t.TempDir(), "handlers-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hub := services.NewHub()
	go hub.Run()

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", handlers.Health).Methods("GET")
	handlers.NewTaskHandler(database.NewTaskStore(db), hub).Register(api)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func request(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeObject(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func decodeList(t *testing.T, resp *http.Response) []map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createTask(t *testing.T, srv *httptest.Server, body string) map[string]any {
	t.Helper()
	resp := request(t, http.MethodPost, srv.URL+"/api/tasks", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeObject(t, resp)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp := request(t, http.MethodGet, srv.URL+"/api/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeObject(t, resp)["status"])
}

func TestCreateTaskDefaults(t *testing.T) {
	srv := newTestServer(t)

	task := createTask(t, srv, `{"title": "  Buy milk  "}`)
	assert.Equal(t, "Buy milk", task["title"])
	assert.Equal(t, float64(0), task["completed"])
	assert.Nil(t, task["details"])
	assert.Nil(t, task["priority"])
	assert.Nil(t, task["due_date"])
	assert.NotEmpty(t, task["created_at"])
	assert.Greater(t, task["id"], float64(0))
}

func TestCreateTaskFullForm(t *testing.T) {
	srv := newTestServer(t)

	task := createTask(t, srv, `{"title": "Report", "details": "Quarterly numbers", "priority": "high", "due_date": "2026-09-15"}`)
	assert.Equal(t, "Report", task["title"])
	assert.Equal(t, "Quarterly numbers", task["details"])
	assert.Equal(t, "high", task["priority"])
	assert.Equal(t, "2026-09-15", task["due_date"])
}

func TestCreateTaskValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name    string
		body    string
		message string
	}{
		{"missing title", `{}`, "Task title is required"},
		{"empty title", `{"title": ""}`, "Task title is required"},
		{"whitespace title", `{"title": "   "}`, "Task title is required"},
		{"null title", `{"title": null}`, "Task title is required"},
		{"non-string title", `{"title": 42}`, "Task title is required"},
		{"invalid priority", `{"title": "Task", "priority": "urgent"}`, "Priority must be high, medium, or low"},
		{"non-string priority", `{"title": "Task", "priority": 5}`, "Priority must be high, medium, or low"},
		// Title is validated before priority
		{"both invalid", `{"title": "", "priority": "urgent"}`, "Task title is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := request(t, http.MethodPost, srv.URL+"/api/tasks", tc.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tc.message, decodeObject(t, resp)["error"])
		})
	}
}

func TestCreateTaskInvalidJSON(t *testing.T) {
	srv := newTestServer(t)

	resp := request(t, http.MethodPost, srv.URL+"/api/tasks", `{"title": `)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid request format", decodeObject(t, resp)["error"])
}

func TestUpdateTaskMerge(t *testing.T) {
	srv := newTestServer(t)

	task := createTask(t, srv, `{"title": "Original", "details": "keep me", "priority": "medium"}`)
	id := int64(task["id"].(float64))

	// Only the provided field changes
	resp := request(t, http.MethodPut, fmt.Sprintf("%s/api/tasks/%d", srv.URL, id), `{"title": "Renamed"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeObject(t, resp)
	assert.Equal(t, "Renamed", updated["title"])
	assert.Equal(t, "keep me", updated["details"])
	assert.Equal(t, "medium", updated["priority"])

	// Explicit null clears, omitted keeps
	resp = request(t, http.MethodPut, fmt.Sprintf("%s/api/tasks/%d", srv.URL, id), `{"details": null}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated = decodeObject(t, resp)
	assert.Nil(t, updated["details"])
	assert.Equal(t, "Renamed", updated["title"])
	assert.Equal(t, "medium", updated["priority"])
}

func TestUpdateTaskValidation(t *testing.T) {
	srv := newTestServer(t)

	task := createTask(t, srv, `{"title": "Task"}`)
	id := int64(task["id"].(float64))

	cases := []struct {
		name    string
		path    string
		body    string
		status  int
		message string
	}{
		{"non-numeric id", "/api/tasks/abc", `{"title": "x"}`, http.StatusBadRequest, "Valid task ID is required"},
		{"zero id", "/api/tasks/0", `{"title": "x"}`, http.StatusBadRequest, "Valid task ID is required"},
		{"unknown id", "/api/tasks/9999", `{"title": "x"}`, http.StatusNotFound, "Task not found"},
		{"empty title", fmt.Sprintf("/api/tasks/%d", id), `{"title": "   "}`, http.StatusBadRequest, "Task title cannot be empty"},
		{"null title", fmt.Sprintf("/api/tasks/%d", id), `{"title": null}`, http.StatusBadRequest, "Task title cannot be empty"},
		{"invalid priority", fmt.Sprintf("/api/tasks/%d", id), `{"priority": "urgent"}`, http.StatusBadRequest, "Priority must be high, medium, or low"},
		{"non-string priority", fmt.Sprintf("/api/tasks/%d", id), `{"priority": 5}`, http.StatusBadRequest, "Priority must be high, medium, or low"},
		{"empty priority", fmt.Sprintf("/api/tasks/%d", id), `{"priority": ""}`, http.StatusBadRequest, "Priority must be high, medium, or low"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := request(t, http.MethodPut, srv.URL+tc.path, tc.body)
			require.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.message, decodeObject(t, resp)["error"])
		})
	}

	// None of the rejected updates were persisted
	resp := request(t, http.MethodGet, srv.URL+"/api/tasks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tasks := decodeList(t, resp)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Task", tasks[0]["title"])
	assert.Nil(t, tasks[0]["priority"])
}

// Covers the full lifecycle: create, toggle twice, delete twice.
func TestTaskLifecycle(t *testing.T) {
	srv := newTestServer(t)

	task := createTask(t, srv, `{"title": "Buy milk"}`)
	id := int64(task["id"].(float64))
	assert.Equal(t, "Buy milk", task["title"])
	assert.Equal(t, float64(0), task["completed"])

	toggleURL := fmt.Sprintf("%s/api/tasks/%d/complete", srv.URL, id)

	resp := request(t, http.MethodPatch, toggleURL, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), decodeObject(t, resp)["completed"])

	resp = request(t, http.MethodPatch, toggleURL, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), decodeObject(t, resp)["completed"])

	resp = request(t, http.MethodDelete, fmt.Sprintf("%s/api/tasks/%d", srv.URL, id), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	deleted := decodeObject(t, resp)
	assert.Equal(t, "Task deleted successfully", deleted["message"])
	assert.Equal(t, float64(id), deleted["id"])

	resp = request(t, http.MethodDelete, fmt.Sprintf("%s/api/tasks/%d", srv.URL, id), "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Task not found", decodeObject(t, resp)["error"])

	resp = request(t, http.MethodPatch, toggleURL, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Task not found", decodeObject(t, resp)["error"])
}

func TestToggleInvalidID(t *testing.T) {
	srv := newTestServer(t)

	resp := request(t, http.MethodPatch, srv.URL+"/api/tasks/abc/complete", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Valid task ID is required", decodeObject(t, resp)["error"])
}

func TestDeleteInvalidID(t *testing.T) {
	srv := newTestServer(t)

	resp := request(t, http.MethodDelete, srv.URL+"/api/tasks/-1", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Valid task ID is required", decodeObject(t, resp)["error"])
}

func TestListFiltersAndSort(t *testing.T) {
	srv := newTestServer(t)

	createTask(t, srv, `{"title": "Pay rent", "priority": "high"}`)
	low := createTask(t, srv, `{"title": "Water plants", "priority": "low"}`)
	createTask(t, srv, `{"title": "Read book"}`)
	createTask(t, srv, `{"title": "File taxes", "priority": "medium", "details": "before the deadline"}`)

	// Complete one task
	resp := request(t, http.MethodPatch, fmt.Sprintf("%s/api/tasks/%d/complete", srv.URL, int64(low["id"].(float64))), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = request(t, http.MethodGet, srv.URL+"/api/tasks?status=active", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	active := decodeList(t, resp)
	require.Len(t, active, 3)
	for _, task := range active {
		assert.Equal(t, float64(0), task["completed"])
	}

	resp = request(t, http.MethodGet, srv.URL+"/api/tasks?priority=high", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	high := decodeList(t, resp)
	require.Len(t, high, 1)
	assert.Equal(t, "Pay rent", high[0]["title"])

	// Conjunction: completed AND priority=low
	resp = request(t, http.MethodGet, srv.URL+"/api/tasks?status=completed&priority=low", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	completedLow := decodeList(t, resp)
	require.Len(t, completedLow, 1)
	assert.Equal(t, "Water plants", completedLow[0]["title"])

	// Substring search over title or details
	resp = request(t, http.MethodGet, srv.URL+"/api/tasks?search=deadline", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	found := decodeList(t, resp)
	require.Len(t, found, 1)
	assert.Equal(t, "File taxes", found[0]["title"])

	// Priority sort: high, medium, low, then unprioritized
	resp = request(t, http.MethodGet, srv.URL+"/api/tasks?sort=priority", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sorted := decodeList(t, resp)
	require.Len(t, sorted, 4)
	assert.Equal(t, "Pay rent", sorted[0]["title"])
	assert.Equal(t, "File taxes", sorted[1]["title"])
	assert.Equal(t, "Water plants", sorted[2]["title"])
	assert.Equal(t, "Read book", sorted[3]["title"])

	// Unrecognized filter values degrade to no filter
	resp = request(t, http.MethodGet, srv.URL+"/api/tasks?priority=urgent&status=archived", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeList(t, resp), 4)
}

func TestListEmpty(t *testing.T) {
	srv := newTestServer(t)

	resp := request(t, http.MethodGet, srv.URL+"/api/tasks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeList(t, resp))
}

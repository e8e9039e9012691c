package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/tasklist/tasklist/database"
	"github.com/tasklist/tasklist/services"
)

// TaskHandler translates HTTP requests into task store operations. It holds
// no task state of its own; every request is served from the store.
type TaskHandler struct {
	store *database.TaskStore
	hub   *services.Hub
}

func NewTaskHandler(store *database.TaskStore, hub *services.Hub) *TaskHandler {
	return &TaskHandler{
		store: store,
		hub:   hub,
	}
}

// Register mounts the task routes on the given (sub)router.
func (h *TaskHandler) Register(r *mux.Router) {
	r.HandleFunc("/tasks", h.List).Methods("GET")
	r.HandleFunc("/tasks", h.Create).Methods("POST")
	r.HandleFunc("/tasks/{id}", h.Update).Methods("PUT")
	r.HandleFunc("/tasks/{id}/complete", h.ToggleComplete).Methods("PATCH")
	r.HandleFunc("/tasks/{id}", h.Delete).Methods("DELETE")
}

// List returns tasks matching the optional search/status/priority/sort
// parameters. Unrecognized filter values degrade to "no filter" rather than
// erroring.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.TaskFilter{
		Search:   q.Get("search"),
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Sort:     q.Get("sort"),
	}

	tasks, err := h.store.Query(r.Context(), filter)
	if err != nil {
		log.Printf("Error fetching tasks: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch tasks")
		return
	}
	respondJSON(w, http.StatusOK, tasks)
}

// Create validates and persists a new task. Title is checked before
// priority; both failures report field-level messages.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in database.CreateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	title := strings.TrimSpace(in.Title.Value)
	if title == "" {
		respondError(w, http.StatusBadRequest, "Task title is required")
		return
	}

	var priority *string
	if in.Priority.Set && !in.Priority.Null && (in.Priority.Invalid || in.Priority.Value != "") {
		if !database.ValidPriority(in.Priority.Value) {
			respondError(w, http.StatusBadRequest, "Priority must be high, medium, or low")
			return
		}
		p := in.Priority.Value
		priority = &p
	}

	task, err := h.store.Create(r.Context(), title, optionalValue(in.Details), priority, optionalValue(in.DueDate))
	if err != nil {
		log.Printf("Error creating task: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create task")
		return
	}

	h.notify(services.EventTaskCreated, task)
	respondJSON(w, http.StatusCreated, task)
}

// Update applies a partial update. The id is validated before any store
// access; existence is checked before the body fields.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Valid task ID is required")
		return
	}

	// An empty body is an empty update, not a malformed one
	var in database.UpdateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	task, err := h.store.Update(r.Context(), id, in)
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, database.ErrEmptyTitle):
		respondError(w, http.StatusBadRequest, "Task title cannot be empty")
	case errors.Is(err, database.ErrInvalidPriority):
		respondError(w, http.StatusBadRequest, "Priority must be high, medium, or low")
	case err != nil:
		log.Printf("Error updating task %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Failed to update task")
	default:
		h.notify(services.EventTaskUpdated, task)
		respondJSON(w, http.StatusOK, task)
	}
}

// ToggleComplete flips the completed flag. No body is read; toggling is
// unconditional once the task exists.
func (h *TaskHandler) ToggleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Valid task ID is required")
		return
	}

	task, err := h.store.ToggleComplete(r.Context(), id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "Task not found")
	case err != nil:
		log.Printf("Error toggling task %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Failed to toggle task completion")
	default:
		h.notify(services.EventTaskToggled, task)
		respondJSON(w, http.StatusOK, task)
	}
}

type deleteResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// Delete removes the task permanently. A second delete of the same id
// yields 404.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Valid task ID is required")
		return
	}

	err := h.store.Delete(r.Context(), id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "Task not found")
	case err != nil:
		log.Printf("Error deleting task %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Failed to delete task")
	default:
		h.notify(services.EventTaskDeleted, map[string]int64{"id": id})
		respondJSON(w, http.StatusOK, deleteResponse{Message: "Task deleted successfully", ID: id})
	}
}

func (h *TaskHandler) notify(eventType string, data any) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(services.Event{Type: eventType, Data: data})
}

func parseTaskID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func optionalValue(o database.OptString) *string {
	if !o.Set || o.Null || o.Value == "" {
		return nil
	}
	v := o.Value
	return &v
}

package database

import (
	"bytes"
	"encoding/json"
)

// Priority values accepted for a task. Anything else is rejected on the
// write paths and ignored on the read path.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

func ValidPriority(p string) bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Task is a single to-do item as stored and as serialized over the wire.
// Completed is kept as 0/1 to match both the sqlite column and the JSON
// contract.
type Task struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Details   *string `json:"details"`
	Completed int     `json:"completed"`
	Priority  *string `json:"priority"`
	DueDate   *string `json:"due_date"`
	CreatedAt string  `json:"created_at"`
}

// OptString is a tri-state JSON string field: it distinguishes a key that was
// omitted (Set=false), a key explicitly set to null (Set=true, Null=true),
// and a key set to a value. The distinction drives the merge-on-provided-keys
// update semantics, where null clears a field and omitted keeps it. A
// non-string value sets Invalid so validators can reject it with a
// field-level message instead of failing the whole decode.
type OptString struct {
	Set     bool
	Null    bool
	Invalid bool
	Value   string
}

func (o *OptString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Null = true
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		o.Invalid = true
		o.Value = ""
	}
	return nil
}

// OptValue builds a provided field.
func OptValue(v string) OptString {
	return OptString{Set: true, Value: v}
}

// OptNull builds an explicitly-cleared field.
func OptNull() OptString {
	return OptString{Set: true, Null: true}
}

// CreateTaskInput is the decoded POST /api/tasks body.
type CreateTaskInput struct {
	Title    OptString `json:"title"`
	Details  OptString `json:"details"`
	Priority OptString `json:"priority"`
	DueDate  OptString `json:"due_date"`
}

// UpdateTaskInput is the decoded PUT /api/tasks/{id} body. Only fields that
// were present in the JSON are applied.
type UpdateTaskInput struct {
	Title    OptString `json:"title"`
	Details  OptString `json:"details"`
	Priority OptString `json:"priority"`
	DueDate  OptString `json:"due_date"`
}

// TaskFilter configures the list query. Zero values mean "no filter" and an
// unrecognized Sort falls back to newest-first.
type TaskFilter struct {
	Search   string
	Status   string
	Priority string
	Sort     string
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no task exists for the requested id.
	ErrNotFound = errors.New("database: task not found")
	// ErrEmptyTitle is returned when an update would leave a task with an
	// empty or whitespace-only title.
	ErrEmptyTitle = errors.New("database: task title is empty")
	// ErrInvalidPriority is returned when a write would persist a priority
	// outside the high/medium/low enum.
	ErrInvalidPriority = errors.New("database: invalid task priority")
)

const timeLayout = time.RFC3339Nano

const taskColumns = "id, title, details, completed, priority, due_date, created_at"

// TaskStore owns the tasks table. All mutations touch exactly one row; the
// compound read-modify-write operations run inside a transaction so that a
// concurrent toggle or update on the same row cannot lose a write.
type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

// Create persists a new task and returns it with its generated id and
// creation timestamp. The title must already be trimmed and non-empty.
func (s *TaskStore) Create(ctx context.Context, title string, details, priority, dueDate *string) (Task, error) {
	if strings.TrimSpace(title) == "" {
		return Task{}, ErrEmptyTitle
	}
	if priority != nil && !ValidPriority(*priority) {
		return Task{}, ErrInvalidPriority
	}

	createdAt := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (title, details, priority, due_date, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		title, details, priority, dueDate, createdAt,
	)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Task{}, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the task with the given id, or ErrNotFound.
func (s *TaskStore) Get(ctx context.Context, id int64) (Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return task, nil
}

// Query returns tasks matching the filter, ordered per its Sort option. All
// filter clauses are AND-combined and every user-supplied value is bound as
// a parameter.
func (s *TaskStore) Query(ctx context.Context, filter TaskFilter) ([]Task, error) {
	query, args := buildTaskQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	out := make([]Task, 0)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

var sortOptions = map[string]string{
	"due_date":   "due_date ASC",
	"priority":   "CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3 ELSE 4 END ASC",
	"created_at": "created_at DESC",
	"completed":  "completed ASC",
}

func buildTaskQuery(filter TaskFilter) (string, []any) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if filter.Search != "" {
		clauses = append(clauses, "(title LIKE ? OR details LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	switch filter.Status {
	case "active":
		clauses = append(clauses, "completed = 0")
	case "completed":
		clauses = append(clauses, "completed = 1")
	}

	// An out-of-enum priority is treated as "no filter" on the read path,
	// matching the write-rejects/read-ignores asymmetry of the API.
	if ValidPriority(filter.Priority) {
		clauses = append(clauses, "priority = ?")
		args = append(args, filter.Priority)
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	orderBy, ok := sortOptions[filter.Sort]
	if !ok {
		orderBy = sortOptions["created_at"]
	}
	return query + " ORDER BY " + orderBy, args
}

// Update applies the provided fields on top of the stored task. Omitted
// fields keep their value, explicit nulls clear the field, and the merged
// result is validated before anything is written.
func (s *TaskStore) Update(ctx context.Context, id int64, in UpdateTaskInput) (Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Task{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	existing, err := getTask(ctx, tx, id)
	if err != nil {
		return Task{}, err
	}

	title := existing.Title
	if in.Title.Set {
		title = strings.TrimSpace(in.Title.Value)
	}
	if title == "" {
		return Task{}, ErrEmptyTitle
	}

	priority := applyOpt(existing.Priority, in.Priority)
	if priority != nil && !ValidPriority(*priority) {
		return Task{}, ErrInvalidPriority
	}
	details := applyOpt(existing.Details, in.Details)
	dueDate := applyOpt(existing.DueDate, in.DueDate)

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET title = ?, details = ?, priority = ?, due_date = ?
		WHERE id = ?`,
		title, details, priority, dueDate, id,
	)
	if err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}

	updated, err := getTask(ctx, tx, id)
	if err != nil {
		return Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return Task{}, fmt.Errorf("commit update: %w", err)
	}
	return updated, nil
}

// ToggleComplete flips the completed flag and returns the updated task. The
// read and the write share one transaction.
func (s *TaskStore) ToggleComplete(ctx context.Context, id int64) (Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Task{}, fmt.Errorf("begin toggle: %w", err)
	}
	defer tx.Rollback()

	existing, err := getTask(ctx, tx, id)
	if err != nil {
		return Task{}, err
	}

	completed := 1
	if existing.Completed != 0 {
		completed = 0
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET completed = ? WHERE id = ?`, completed, id); err != nil {
		return Task{}, fmt.Errorf("toggle task: %w", err)
	}

	updated, err := getTask(ctx, tx, id)
	if err != nil {
		return Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return Task{}, fmt.Errorf("commit toggle: %w", err)
	}
	return updated, nil
}

// Delete removes the task permanently. Existence is checked explicitly so a
// missing row is never inferred from a zero-rows-affected write.
func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := getTask(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return tx.Commit()
}

func applyOpt(current *string, in OptString) *string {
	if !in.Set {
		return current
	}
	if in.Null {
		return nil
	}
	v := in.Value
	return &v
}

func getTask(ctx context.Context, tx *sql.Tx, id int64) (Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return task, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (Task, error) {
	var out Task
	var details, priority, dueDate sql.NullString
	if err := s.Scan(&out.ID, &out.Title, &details, &out.Completed, &priority, &dueDate, &out.CreatedAt); err != nil {
		return Task{}, err
	}
	out.Details = nullable(details)
	out.Priority = nullable(priority)
	out.DueDate = nullable(dueDate)
	return out, nil
}

func nullable(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

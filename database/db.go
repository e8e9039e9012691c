package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens (or creates) the sqlite database at path and ensures the
// tasks schema exists. The CHECK constraint on priority is the schema-level
// backstop behind the service's own validation.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		details TEXT,
		completed INTEGER NOT NULL DEFAULT 0,
		priority TEXT CHECK(priority IN ('high', 'medium', 'low')) DEFAULT NULL,
		due_date TEXT DEFAULT NULL,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tasks table: %w", err)
	}

	log.Println("Database initialized successfully")
	return db, nil
}

// SeedSampleData inserts a few demo tasks. It is a no-op unless the tasks
// table is empty.
func SeedSampleData(ctx context.Context, store *TaskStore) error {
	var count int
	row := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks")
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("failed to count tasks: %w", err)
	}
	if count > 0 {
		return nil
	}

	details := func(s string) *string { return &s }
	priority := func(s string) *string { return &s }

	samples := []struct {
		title    string
		details  *string
		priority *string
	}{
		{"Buy groceries", details("Milk, eggs, bread"), priority(PriorityMedium)},
		{"Read a book", nil, priority(PriorityLow)},
		{"Finish project report", details("Draft due by end of week"), priority(PriorityHigh)},
	}

	for _, s := range samples {
		if _, err := store.Create(ctx, s.title, s.details, s.priority, nil); err != nil {
			return fmt.Errorf("failed to seed task %q: %w", s.title, err)
		}
	}

	log.Printf("Seeded %d sample tasks", len(samples))
	return nil
}

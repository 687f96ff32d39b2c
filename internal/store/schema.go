package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
)

// schemaStatements creates the tables on first open. Array-valued problem
// fields are JSON text and booleans are 0/1 integers.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		generation_date TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		problem_count INTEGER NOT NULL DEFAULT 0,
		imported_at TEXT NOT NULL,
		import_seq INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_imported ON batches (imported_at, import_seq)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_generation ON batches (generation_date)`,
	`CREATE TABLE IF NOT EXISTS problems (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		ordinal INTEGER NOT NULL,
		equation TEXT NOT NULL,
		direction TEXT NOT NULL DEFAULT '',
		answer TEXT NOT NULL,
		solution_steps TEXT NOT NULL DEFAULT '[]',
		variables TEXT NOT NULL DEFAULT '[]',
		difficulty TEXT NOT NULL CHECK (difficulty IN ('easy', 'medium', 'hard')),
		problem_type TEXT NOT NULL,
		is_completed INTEGER NOT NULL DEFAULT 0 CHECK (is_completed IN (0, 1)),
		user_answer TEXT,
		solution_steps_shown INTEGER NOT NULL DEFAULT 0 CHECK (solution_steps_shown IN (0, 1)),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_problems_batch ON problems (batch_id, created_at, ordinal)`,
	`CREATE TABLE IF NOT EXISTS user_progress (
		id TEXT PRIMARY KEY,
		current_batch_id TEXT,
		problems_attempted INTEGER NOT NULL DEFAULT 0,
		problems_correct INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (problems_correct <= problems_attempted)
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}

func ensureSchema(ctx context.Context, ex dialect.ExecQuerier) error {
	for _, stmt := range schemaStatements {
		if err := ex.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}

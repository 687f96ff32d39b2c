package store

import (
	"context"
	"time"
)

// BatchRepo manages problem batches and their problems.
type BatchRepo interface {
	// AddBatch inserts the batch and its problems atomically and returns the
	// batch id. Problems declaring a different batch id are logged and skipped.
	AddBatch(ctx context.Context, batch BatchInput, problems []ProblemInput) (string, error)

	// GetBatch returns the batch with id, or nil if none exists.
	GetBatch(ctx context.Context, id string) (*Batch, error)

	// LatestBatch returns the most recently imported batch, or nil.
	LatestBatch(ctx context.Context) (*Batch, error)

	// ListBatches returns all batches, most recently imported first.
	ListBatches(ctx context.Context) ([]Batch, error)

	// BatchesOnDay returns batches generated on the UTC calendar day of day,
	// most recent generation date first.
	BatchesOnDay(ctx context.Context, day time.Time) ([]Batch, error)

	// DeleteBatch removes a batch and all of its problems.
	DeleteBatch(ctx context.Context, id string) error

	// DeleteAllBatches removes every problem, then every batch.
	DeleteAllBatches(ctx context.Context) error

	// ProblemsByBatch returns a batch's problems in creation order.
	ProblemsByBatch(ctx context.Context, batchID string) ([]Problem, error)

	// UnsolvedProblems returns uncompleted problems in creation order. An empty
	// batchID spans every batch; limit <= 0 means no limit.
	UnsolvedProblems(ctx context.Context, batchID string, limit int) ([]Problem, error)

	// GetProblem returns the problem with id, or nil.
	GetProblem(ctx context.Context, id string) (*Problem, error)

	// CompletedProblems returns every completed problem in creation order.
	CompletedProblems(ctx context.Context) ([]Problem, error)

	// BatchStats counts total and completed problems of a batch.
	BatchStats(ctx context.Context, batchID string) (BatchStats, error)

	// MarkCompleted records the learner's answer. Returns ErrNotFound if the
	// problem does not exist.
	MarkCompleted(ctx context.Context, problemID, userAnswer string) error

	// MarkSolutionShown flags that the worked solution was viewed.
	MarkSolutionShown(ctx context.Context, problemID string) error

	// ResetProblems marks every problem uncompleted and clears its answer.
	ResetProblems(ctx context.Context) error
}

// ProgressRepo manages the learner progress record.
type ProgressRepo interface {
	// Get returns the progress record, or nil if it was never created.
	Get(ctx context.Context) (*UserProgress, error)

	// Update merges u into the record, creating it with zero counters first
	// when absent.
	Update(ctx context.Context, u ProgressUpdate) (*UserProgress, error)

	// Increment adds to the counters, creating the record when absent.
	Increment(ctx context.Context, attempted, correct int) (*UserProgress, error)

	// Reset zeroes both counters and marks every problem uncompleted.
	Reset(ctx context.Context) error
}

// SettingsRepo is a small key/value table for local bookkeeping.
type SettingsRepo interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Repos groups the repositories of one backend or one transaction.
type Repos interface {
	Batches() BatchRepo
	Progress() ProgressRepo
	Settings() SettingsRepo
}

// Backend is a storage implementation. Operations made through the Repos of
// a WithTx callback commit together, or not at all if fn returns an error.
type Backend interface {
	Repos
	WithTx(ctx context.Context, fn func(Repos) error) error
	Close() error
}

package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Memory is a process-lifetime backend. Transactions run against a private
// copy of the state which replaces the shared state only on success, so
// readers observe either the old or the new state in full.
type Memory struct {
	mu     sync.RWMutex
	writer sync.Mutex
	state  *memState
	logger *zap.Logger
	now    func() time.Time
}

type memState struct {
	batches  map[string]memBatch
	problems []Problem
	progress *UserProgress
	settings map[string]string
	seq      int64
}

type memBatch struct {
	Batch
	seq int64
}

// NewMemory returns an empty in-memory backend.
func NewMemory(opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{
		state: &memState{
			batches:  map[string]memBatch{},
			settings: map[string]string{},
		},
		logger: o.logger,
		now:    o.now,
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		batches:  maps.Clone(s.batches),
		problems: slices.Clone(s.problems),
		settings: maps.Clone(s.settings),
		seq:      s.seq,
	}
	if s.progress != nil {
		p := *s.progress
		c.progress = &p
	}
	return c
}

func (m *Memory) Batches() BatchRepo     { return &memRepos{m: m} }
func (m *Memory) Progress() ProgressRepo { return &memProgress{&memRepos{m: m}} }
func (m *Memory) Settings() SettingsRepo { return &memSettings{&memRepos{m: m}} }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// WithTx runs fn against a copy of the state and publishes it if fn succeeds.
func (m *Memory) WithTx(ctx context.Context, fn func(Repos) error) error {
	return m.update(func(st *memState) error {
		return fn(&memTx{&memRepos{m: m, st: st}})
	})
}

func (m *Memory) update(fn func(*memState) error) error {
	m.writer.Lock()
	defer m.writer.Unlock()

	m.mu.RLock()
	st := m.state.clone()
	m.mu.RUnlock()

	if err := fn(st); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
	return nil
}

// memTx exposes the repositories bound to one transaction's state.
type memTx struct {
	r *memRepos
}

func (t *memTx) Batches() BatchRepo     { return t.r }
func (t *memTx) Progress() ProgressRepo { return &memProgress{t.r} }
func (t *memTx) Settings() SettingsRepo { return &memSettings{t.r} }

// memRepos reads and writes the shared state, or the transaction copy st
// when set.
type memRepos struct {
	m  *Memory
	st *memState
}

func (r *memRepos) read(fn func(*memState) error) error {
	if r.st != nil {
		return fn(r.st)
	}
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return fn(r.m.state)
}

func (r *memRepos) write(fn func(*memState) error) error {
	if r.st != nil {
		return fn(r.st)
	}
	return r.m.update(fn)
}

func (r *memRepos) now() time.Time {
	return r.m.now().UTC()
}

func (r *memRepos) AddBatch(_ context.Context, in BatchInput, problems []ProblemInput) (string, error) {
	batchID := in.ID
	if batchID == "" {
		batchID = uuid.NewString()
	}

	err := r.write(func(st *memState) error {
		if _, ok := st.batches[batchID]; ok {
			return fmt.Errorf("insert batch %s: already exists", batchID)
		}
		st.seq++
		importedAt := r.now()
		st.batches[batchID] = memBatch{
			Batch: Batch{
				ID:             batchID,
				GenerationDate: in.GenerationDate.UTC(),
				SourceURL:      in.SourceURL,
				ProblemCount:   in.ProblemCount,
				ImportedAt:     importedAt,
			},
			seq: st.seq,
		}

		ids := make(map[string]struct{}, len(st.problems))
		for _, p := range st.problems {
			ids[p.ID] = struct{}{}
		}

		ordinal := 0
		for i, p := range problems {
			if p.BatchID != "" && p.BatchID != batchID {
				r.m.logger.Warn("skipping problem with mismatched batch id",
					zap.String("batch_id", batchID),
					zap.String("problem_batch_id", p.BatchID),
					zap.String("problem_id", p.ID),
				)
				continue
			}
			if p.ID == "" {
				p.ID = problemID(batchID, i+1)
			}
			if err := validateProblem(p); err != nil {
				return err
			}
			if _, dup := ids[p.ID]; dup {
				return fmt.Errorf("insert problem %s: already exists", p.ID)
			}
			ids[p.ID] = struct{}{}

			st.problems = append(st.problems, Problem{
				ID:            p.ID,
				BatchID:       batchID,
				Ordinal:       ordinal,
				Equation:      p.Equation,
				Direction:     p.Direction,
				Answer:        p.Answer,
				SolutionSteps: orEmpty(p.SolutionSteps),
				Variables:     orEmpty(p.Variables),
				Difficulty:    p.Difficulty,
				ProblemType:   p.ProblemType,
				CreatedAt:     importedAt,
				UpdatedAt:     importedAt,
			})
			ordinal++
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return batchID, nil
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (r *memRepos) GetBatch(_ context.Context, id string) (*Batch, error) {
	var out *Batch
	err := r.read(func(st *memState) error {
		if b, ok := st.batches[id]; ok {
			out = &b.Batch
		}
		return nil
	})
	return out, err
}

func (r *memRepos) LatestBatch(ctx context.Context) (*Batch, error) {
	batches, err := r.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	return firstBatch(batches), nil
}

func (r *memRepos) ListBatches(_ context.Context) ([]Batch, error) {
	var out []Batch
	err := r.read(func(st *memState) error {
		out = sortedBatches(st, func(a, b memBatch) int {
			if c := b.ImportedAt.Compare(a.ImportedAt); c != 0 {
				return c
			}
			return cmp.Compare(b.seq, a.seq)
		}, nil)
		return nil
	})
	return out, err
}

func (r *memRepos) BatchesOnDay(_ context.Context, day time.Time) ([]Batch, error) {
	start, end := DayBounds(day)
	var out []Batch
	err := r.read(func(st *memState) error {
		out = sortedBatches(st, func(a, b memBatch) int {
			if c := b.GenerationDate.Compare(a.GenerationDate); c != 0 {
				return c
			}
			return cmp.Compare(b.seq, a.seq)
		}, func(b memBatch) bool {
			return !b.GenerationDate.Before(start) && b.GenerationDate.Before(end)
		})
		return nil
	})
	return out, err
}

func sortedBatches(st *memState, order func(a, b memBatch) int, keep func(memBatch) bool) []Batch {
	all := make([]memBatch, 0, len(st.batches))
	for _, b := range st.batches {
		if keep == nil || keep(b) {
			all = append(all, b)
		}
	}
	slices.SortFunc(all, order)

	out := make([]Batch, 0, len(all))
	for _, b := range all {
		out = append(out, b.Batch)
	}
	return out
}

func (r *memRepos) DeleteBatch(_ context.Context, id string) error {
	return r.write(func(st *memState) error {
		delete(st.batches, id)
		st.problems = slices.DeleteFunc(st.problems, func(p Problem) bool {
			return p.BatchID == id
		})
		return nil
	})
}

func (r *memRepos) DeleteAllBatches(_ context.Context) error {
	return r.write(func(st *memState) error {
		st.problems = nil
		st.batches = map[string]memBatch{}
		return nil
	})
}

// selectProblems returns matching problems in creation order.
func (r *memRepos) selectProblems(keep func(Problem) bool, limit int) ([]Problem, error) {
	var out []Problem
	err := r.read(func(st *memState) error {
		for _, p := range st.problems {
			if keep(p) {
				out = append(out, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(out, func(a, b Problem) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Ordinal, b.Ordinal); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepos) ProblemsByBatch(_ context.Context, batchID string) ([]Problem, error) {
	return r.selectProblems(func(p Problem) bool { return p.BatchID == batchID }, 0)
}

func (r *memRepos) UnsolvedProblems(_ context.Context, batchID string, limit int) ([]Problem, error) {
	return r.selectProblems(func(p Problem) bool {
		return !p.IsCompleted && (batchID == "" || p.BatchID == batchID)
	}, limit)
}

func (r *memRepos) GetProblem(_ context.Context, id string) (*Problem, error) {
	problems, err := r.selectProblems(func(p Problem) bool { return p.ID == id }, 1)
	if err != nil || len(problems) == 0 {
		return nil, err
	}
	return &problems[0], nil
}

func (r *memRepos) CompletedProblems(_ context.Context) ([]Problem, error) {
	return r.selectProblems(func(p Problem) bool { return p.IsCompleted }, 0)
}

func (r *memRepos) BatchStats(_ context.Context, batchID string) (BatchStats, error) {
	var stats BatchStats
	err := r.read(func(st *memState) error {
		for _, p := range st.problems {
			if p.BatchID != batchID {
				continue
			}
			stats.Total++
			if p.IsCompleted {
				stats.Completed++
			}
		}
		return nil
	})
	return stats, err
}

func (r *memRepos) updateProblem(problemID string, fn func(*Problem)) error {
	return r.write(func(st *memState) error {
		for i := range st.problems {
			if st.problems[i].ID == problemID {
				fn(&st.problems[i])
				st.problems[i].UpdatedAt = r.now()
				return nil
			}
		}
		return fmt.Errorf("problem %s: %w", problemID, ErrNotFound)
	})
}

func (r *memRepos) MarkCompleted(_ context.Context, problemID, userAnswer string) error {
	return r.updateProblem(problemID, func(p *Problem) {
		p.IsCompleted = true
		p.UserAnswer = &userAnswer
	})
}

func (r *memRepos) MarkSolutionShown(_ context.Context, problemID string) error {
	return r.updateProblem(problemID, func(p *Problem) {
		p.SolutionStepsShown = true
	})
}

func (r *memRepos) ResetProblems(_ context.Context) error {
	return r.write(func(st *memState) error {
		r.resetProblems(st)
		return nil
	})
}

func (r *memRepos) resetProblems(st *memState) {
	ts := r.now()
	for i := range st.problems {
		p := &st.problems[i]
		if p.IsCompleted || p.UserAnswer != nil {
			p.IsCompleted = false
			p.UserAnswer = nil
			p.UpdatedAt = ts
		}
	}
}

type memProgress struct {
	*memRepos
}

func (r *memProgress) Get(_ context.Context) (*UserProgress, error) {
	var out *UserProgress
	err := r.read(func(st *memState) error {
		out = copyProgress(st.progress)
		return nil
	})
	return out, err
}

func copyProgress(p *UserProgress) *UserProgress {
	if p == nil {
		return nil
	}
	c := *p
	if p.CurrentBatchID != nil {
		id := *p.CurrentBatchID
		c.CurrentBatchID = &id
	}
	return &c
}

// ensure returns the live progress record of st, creating it when absent.
func (r *memProgress) ensure(st *memState) *UserProgress {
	if st.progress == nil {
		ts := r.now()
		st.progress = &UserProgress{ID: ProgressID, CreatedAt: ts, UpdatedAt: ts}
	}
	return st.progress
}

func (r *memProgress) Update(_ context.Context, u ProgressUpdate) (*UserProgress, error) {
	var out *UserProgress
	err := r.write(func(st *memState) error {
		p := copyProgress(r.ensure(st))
		if err := u.apply(p); err != nil {
			return err
		}
		p.UpdatedAt = r.now()
		st.progress = p
		out = copyProgress(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *memProgress) Increment(_ context.Context, attempted, correct int) (*UserProgress, error) {
	var out *UserProgress
	err := r.write(func(st *memState) error {
		p := copyProgress(r.ensure(st))
		p.ProblemsAttempted += attempted
		p.ProblemsCorrect += correct
		if err := checkCounters(p.ProblemsAttempted, p.ProblemsCorrect); err != nil {
			return err
		}
		p.UpdatedAt = r.now()
		st.progress = p
		out = copyProgress(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *memProgress) Reset(_ context.Context) error {
	return r.write(func(st *memState) error {
		p := r.ensure(st)
		p.ProblemsAttempted, p.ProblemsCorrect = 0, 0
		p.UpdatedAt = r.now()
		r.resetProblems(st)
		return nil
	})
}

type memSettings struct {
	*memRepos
}

func (r *memSettings) Get(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := r.read(func(st *memState) error {
		value, found = st.settings[key]
		return nil
	})
	return value, found, err
}

func (r *memSettings) Set(_ context.Context, key, value string) error {
	return r.write(func(st *memState) error {
		st.settings[key] = value
		return nil
	})
}

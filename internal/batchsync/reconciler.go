// Package batchsync reconciles remotely published problem batches with the
// local store.
package batchsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/algebrix/internal/logging"
	"github.com/abhisek/algebrix/internal/store"
)

// Disposition is the outcome of reconciling one candidate batch.
type Disposition string

const (
	// SkippedExisting: a batch with the candidate's id is already stored.
	SkippedExisting Disposition = "SKIPPED_EXISTING"
	// ReplacedExisting: a batch generated on the same calendar day was
	// replaced by the candidate.
	ReplacedExisting Disposition = "REPLACED_EXISTING"
	// ImportedNew: the candidate was stored alongside existing batches.
	ImportedNew Disposition = "IMPORTED_NEW"
)

// LastSyncKey is the settings key holding the time of the last successful sync.
const LastSyncKey = "last_sync_at"

// Result describes what a reconcile did.
type Result struct {
	Disposition Disposition
	BatchID     string
	// ReplacedID is the id of the deleted batch for ReplacedExisting.
	ReplacedID string
	// Problems is the number of problems stored for the batch.
	Problems int
}

// Reconciler decides and applies dispositions for candidate batches.
type Reconciler struct {
	backend store.Backend
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) { r.logger = logging.OrNop(l) }
}

// WithMetrics records outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithClock overrides the time source for the last-sync timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New creates a Reconciler over backend.
func New(backend store.Backend, opts ...Option) *Reconciler {
	r := &Reconciler{
		backend: backend,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile applies c to the store in one transaction:
//  1. a stored batch with the same id: SkippedExisting, nothing changes
//  2. a stored batch generated on the same UTC calendar day: that batch (the
//     one with the latest generation date if several match) is deleted with
//     its problems and c is inserted: ReplacedExisting
//  3. otherwise c is inserted: ImportedNew
func (r *Reconciler) Reconcile(ctx context.Context, c *Candidate) (Result, error) {
	var res Result
	err := r.backend.WithTx(ctx, func(repos store.Repos) error {
		var err error
		res, err = r.apply(ctx, repos, c, "")
		return err
	})
	if err != nil {
		r.metrics.observeFailure(StageReconcile)
		return Result{}, fmt.Errorf("reconcile batch %s: %w", c.ID, err)
	}
	r.record(c, res)
	return res, nil
}

// Sync fetches a candidate and reconciles it, recording the sync time. The
// fetch runs outside any transaction; if it or validation fails, the store is
// left untouched and the error is returned.
func (r *Reconciler) Sync(ctx context.Context, f Fetcher) (Result, error) {
	res, err := r.fetchAndApply(ctx, f, true)
	if err != nil {
		return Result{}, fmt.Errorf("sync: %w", err)
	}
	return res, nil
}

// Import is Sync for a one-off source such as a local file: the last sync
// time is left unchanged.
func (r *Reconciler) Import(ctx context.Context, f Fetcher) (Result, error) {
	res, err := r.fetchAndApply(ctx, f, false)
	if err != nil {
		return Result{}, fmt.Errorf("import: %w", err)
	}
	return res, nil
}

func (r *Reconciler) fetchAndApply(ctx context.Context, f Fetcher, markSynced bool) (Result, error) {
	raw, err := f.Fetch(ctx)
	if err != nil {
		r.metrics.observeFailure(StageFetch)
		r.logger.Warn("batch fetch failed", zap.String("source", f.Source()), zap.Error(err))
		return Result{}, err
	}

	c, err := ParseCandidate(raw)
	if err != nil {
		r.metrics.observeFailure(StageValidate)
		r.logger.Warn("fetched batch rejected", zap.String("source", f.Source()), zap.Error(err))
		return Result{}, err
	}

	var res Result
	err = r.backend.WithTx(ctx, func(repos store.Repos) error {
		var err error
		if res, err = r.apply(ctx, repos, c, f.Source()); err != nil {
			return err
		}
		if !markSynced {
			return nil
		}
		return repos.Settings().Set(ctx, LastSyncKey, r.now().UTC().Format(time.RFC3339Nano))
	})
	if err != nil {
		r.metrics.observeFailure(StageReconcile)
		return Result{}, fmt.Errorf("reconcile batch %s: %w", c.ID, err)
	}
	r.record(c, res)
	return res, nil
}

func (r *Reconciler) apply(ctx context.Context, repos store.Repos, c *Candidate, sourceURL string) (Result, error) {
	batches := repos.Batches()

	if c.ID != "" {
		existing, err := batches.GetBatch(ctx, c.ID)
		if err != nil {
			return Result{}, err
		}
		if existing != nil {
			return Result{Disposition: SkippedExisting, BatchID: c.ID}, nil
		}
	}

	res := Result{Disposition: ImportedNew}

	sameDay, err := batches.BatchesOnDay(ctx, c.GenerationDate)
	if err != nil {
		return Result{}, err
	}
	// BatchesOnDay orders by generation date descending, so the first
	// match is the one to replace.
	for _, b := range sameDay {
		if b.ID == c.ID {
			continue
		}
		if err := batches.DeleteBatch(ctx, b.ID); err != nil {
			return Result{}, err
		}
		res.Disposition = ReplacedExisting
		res.ReplacedID = b.ID
		break
	}

	// Problems always belong to the batch being inserted, whatever id the
	// document carried for them.
	problems := make([]store.ProblemInput, len(c.Problems))
	for i, p := range c.Problems {
		p.BatchID = c.ID
		problems[i] = p
	}

	id, err := batches.AddBatch(ctx, c.BatchInput(sourceURL), problems)
	if err != nil {
		return Result{}, err
	}
	res.BatchID = id

	stats, err := batches.BatchStats(ctx, id)
	if err != nil {
		return Result{}, err
	}
	res.Problems = stats.Total
	return res, nil
}

func (r *Reconciler) record(c *Candidate, res Result) {
	r.metrics.observeDisposition(res.Disposition)

	fields := []zap.Field{
		zap.String("disposition", string(res.Disposition)),
		zap.String("batch_id", res.BatchID),
		zap.Time("generation_date", c.GenerationDate),
	}
	if res.ReplacedID != "" {
		fields = append(fields, zap.String("replaced_id", res.ReplacedID))
	}
	r.logger.Info("batch reconciled", fields...)

	if res.Disposition != SkippedExisting && res.Problems != c.ProblemCount {
		r.logger.Warn("stored problem count differs from declared count",
			zap.String("batch_id", res.BatchID),
			zap.Int("declared", c.ProblemCount),
			zap.Int("stored", res.Problems),
		)
	}
}

// LastSyncTime returns the time of the last successful sync, if any.
func (r *Reconciler) LastSyncTime(ctx context.Context) (time.Time, bool, error) {
	v, ok, err := r.backend.Settings().Get(ctx, LastSyncKey)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %s: %w", LastSyncKey, err)
	}
	return t, true, nil
}

// ShouldSync reports whether interval has elapsed since the last successful
// sync. It is true when no sync has succeeded yet.
func (r *Reconciler) ShouldSync(ctx context.Context, interval time.Duration) (bool, error) {
	last, ok, err := r.LastSyncTime(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return r.now().Sub(last) >= interval, nil
}

// IsFetchFailure reports whether err came from obtaining or validating the
// candidate, in which case no local state was changed.
func IsFetchFailure(err error) bool {
	var fe *FetchError
	var ve *ValidationError
	return errors.As(err, &fe) || errors.As(err, &ve)
}

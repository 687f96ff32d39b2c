package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

const (
	tableProgress = "user_progress"
	tableSettings = "settings"
)

var progressColumns = []string{
	"id", "current_batch_id", "problems_attempted", "problems_correct", "created_at", "updated_at",
}

type progressRepo struct {
	*sqlRepos
}

func (r *progressRepo) Get(ctx context.Context) (*UserProgress, error) {
	query, args := builder().Select(progressColumns...).
		From(entsql.Table(tableProgress)).
		Where(entsql.EQ("id", ProgressID)).
		Query()

	var found *UserProgress
	err := r.query(ctx, query, args, func(rows *entsql.Rows) error {
		var (
			p                    UserProgress
			current              sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&p.ID, &current, &p.ProblemsAttempted, &p.ProblemsCorrect, &createdAt, &updatedAt); err != nil {
			return err
		}
		if current.Valid {
			p.CurrentBatchID = &current.String
		}
		var err error
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return err
		}
		if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return err
		}
		found = &p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get user progress: %w", err)
	}
	return found, nil
}

// ensure returns the progress record, inserting a zeroed one when absent.
func (r *progressRepo) ensure(ctx context.Context) (*UserProgress, error) {
	p, err := r.Get(ctx)
	if err != nil || p != nil {
		return p, err
	}

	ts := r.timestamp()
	query, args := builder().Insert(tableProgress).
		Columns("id", "problems_attempted", "problems_correct", "created_at", "updated_at").
		Values(ProgressID, 0, 0, ts, ts).
		Query()
	if _, err := r.exec(ctx, query, args); err != nil {
		return nil, fmt.Errorf("init user progress: %w", err)
	}
	return r.Get(ctx)
}

func (r *progressRepo) Update(ctx context.Context, u ProgressUpdate) (*UserProgress, error) {
	var out *UserProgress
	err := r.atomic(ctx, func(tx *sqlRepos) error {
		repo := &progressRepo{tx}
		p, err := repo.ensure(ctx)
		if err != nil {
			return err
		}
		if err := u.apply(p); err != nil {
			return err
		}
		if err := repo.save(ctx, p); err != nil {
			return err
		}
		out, err = repo.Get(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *progressRepo) Increment(ctx context.Context, attempted, correct int) (*UserProgress, error) {
	var out *UserProgress
	err := r.atomic(ctx, func(tx *sqlRepos) error {
		repo := &progressRepo{tx}
		p, err := repo.ensure(ctx)
		if err != nil {
			return err
		}
		p.ProblemsAttempted += attempted
		p.ProblemsCorrect += correct
		if err := checkCounters(p.ProblemsAttempted, p.ProblemsCorrect); err != nil {
			return err
		}
		if err := repo.save(ctx, p); err != nil {
			return err
		}
		out, err = repo.Get(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *progressRepo) Reset(ctx context.Context) error {
	return r.atomic(ctx, func(tx *sqlRepos) error {
		repo := &progressRepo{tx}
		p, err := repo.ensure(ctx)
		if err != nil {
			return err
		}
		p.ProblemsAttempted, p.ProblemsCorrect = 0, 0
		if err := repo.save(ctx, p); err != nil {
			return err
		}
		return tx.resetProblems(ctx)
	})
}

func (r *progressRepo) save(ctx context.Context, p *UserProgress) error {
	upd := builder().Update(tableProgress).
		Set("problems_attempted", p.ProblemsAttempted).
		Set("problems_correct", p.ProblemsCorrect).
		Set("updated_at", r.timestamp()).
		Where(entsql.EQ("id", ProgressID))
	if p.CurrentBatchID == nil {
		upd.SetNull("current_batch_id")
	} else {
		upd.Set("current_batch_id", *p.CurrentBatchID)
	}

	query, args := upd.Query()
	if _, err := r.exec(ctx, query, args); err != nil {
		return fmt.Errorf("save user progress: %w", err)
	}
	return nil
}

type settingsRepo struct {
	*sqlRepos
}

func (r *settingsRepo) Get(ctx context.Context, key string) (string, bool, error) {
	query, args := builder().Select("value").
		From(entsql.Table(tableSettings)).
		Where(entsql.EQ("key", key)).
		Query()

	var (
		value string
		found bool
	)
	err := r.query(ctx, query, args, func(rows *entsql.Rows) error {
		found = true
		return rows.Scan(&value)
	})
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, found, nil
}

func (r *settingsRepo) Set(ctx context.Context, key, value string) error {
	ts := r.timestamp()
	query, args := builder().Insert(tableSettings).
		Columns("key", "value", "updated_at").
		Values(key, value, ts).
		OnConflict(
			entsql.ConflictColumns("key"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.exec(ctx, query, args); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	tableBatches  = "batches"
	tableProblems = "problems"
)

var batchColumns = []string{
	"id", "generation_date", "source_url", "problem_count", "imported_at",
}

var problemColumns = []string{
	"id", "batch_id", "ordinal", "equation", "direction", "answer",
	"solution_steps", "variables", "difficulty", "problem_type",
	"is_completed", "user_answer", "solution_steps_shown", "created_at", "updated_at",
}

// problemOrder is creation order: all problems of a batch share created_at,
// so the ordinal breaks ties.
var problemOrder = []string{entsql.Asc("created_at"), entsql.Asc("ordinal"), entsql.Asc("id")}

// batchRepo implements BatchRepo with SQL built by ent's dialect/sql package.
type batchRepo struct {
	*sqlRepos
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (r *batchRepo) AddBatch(ctx context.Context, in BatchInput, problems []ProblemInput) (string, error) {
	batchID := in.ID
	if batchID == "" {
		batchID = uuid.NewString()
	}

	err := r.atomic(ctx, func(tx *sqlRepos) error {
		seq, err := tx.store.seq.Next(ctx, tx.ex)
		if err != nil {
			return err
		}

		importedAt := tx.timestamp()
		query, args := builder().Insert(tableBatches).
			Columns("id", "generation_date", "source_url", "problem_count", "imported_at", "import_seq").
			Values(batchID, formatTime(in.GenerationDate), in.SourceURL, in.ProblemCount, importedAt, seq).
			Query()
		if _, err := tx.exec(ctx, query, args); err != nil {
			return fmt.Errorf("insert batch %s: %w", batchID, err)
		}

		ordinal := 0
		for i, p := range problems {
			if p.BatchID != "" && p.BatchID != batchID {
				tx.store.logger.Warn("skipping problem with mismatched batch id",
					zap.String("batch_id", batchID),
					zap.String("problem_batch_id", p.BatchID),
					zap.String("problem_id", p.ID),
				)
				continue
			}
			if p.ID == "" {
				p.ID = problemID(batchID, i+1)
			}
			if err := tx.insertProblem(ctx, batchID, ordinal, importedAt, p); err != nil {
				return err
			}
			ordinal++
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return batchID, nil
}

func (r *sqlRepos) insertProblem(ctx context.Context, batchID string, ordinal int, ts string, p ProblemInput) error {
	if err := validateProblem(p); err != nil {
		return err
	}
	answer, err := encodeAnswer(p.Answer)
	if err != nil {
		return fmt.Errorf("encode answer for %s: %w", p.ID, err)
	}
	steps, err := marshalList(p.SolutionSteps)
	if err != nil {
		return fmt.Errorf("encode solution steps for %s: %w", p.ID, err)
	}
	vars, err := marshalList(p.Variables)
	if err != nil {
		return fmt.Errorf("encode variables for %s: %w", p.ID, err)
	}

	query, args := builder().Insert(tableProblems).
		Columns(problemColumns...).
		Values(p.ID, batchID, ordinal, p.Equation, p.Direction, answer,
			steps, vars, string(p.Difficulty), string(p.ProblemType),
			0, nil, 0, ts, ts).
		Query()
	if _, err := r.exec(ctx, query, args); err != nil {
		return fmt.Errorf("insert problem %s: %w", p.ID, err)
	}
	return nil
}

// marshalList encodes a slice as JSON text, using [] for nil.
func marshalList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *batchRepo) GetBatch(ctx context.Context, id string) (*Batch, error) {
	query, args := builder().Select(batchColumns...).
		From(entsql.Table(tableBatches)).
		Where(entsql.EQ("id", id)).
		Query()
	batches, err := r.queryBatches(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("get batch %s: %w", id, err)
	}
	return firstBatch(batches), nil
}

func (r *batchRepo) LatestBatch(ctx context.Context) (*Batch, error) {
	query, args := builder().Select(batchColumns...).
		From(entsql.Table(tableBatches)).
		OrderBy(entsql.Desc("imported_at"), entsql.Desc("import_seq")).
		Limit(1).
		Query()
	batches, err := r.queryBatches(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("query latest batch: %w", err)
	}
	return firstBatch(batches), nil
}

func (r *batchRepo) ListBatches(ctx context.Context) ([]Batch, error) {
	query, args := builder().Select(batchColumns...).
		From(entsql.Table(tableBatches)).
		OrderBy(entsql.Desc("imported_at"), entsql.Desc("import_seq")).
		Query()
	batches, err := r.queryBatches(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

func (r *batchRepo) BatchesOnDay(ctx context.Context, day time.Time) ([]Batch, error) {
	start, end := DayBounds(day)
	query, args := builder().Select(batchColumns...).
		From(entsql.Table(tableBatches)).
		Where(entsql.And(
			entsql.GTE("generation_date", formatTime(start)),
			entsql.LT("generation_date", formatTime(end)),
		)).
		OrderBy(entsql.Desc("generation_date"), entsql.Desc("import_seq")).
		Query()
	batches, err := r.queryBatches(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("query batches on %s: %w", start.Format(time.DateOnly), err)
	}
	return batches, nil
}

func (r *batchRepo) DeleteBatch(ctx context.Context, id string) error {
	// Problems are removed by ON DELETE CASCADE.
	query, args := builder().Delete(tableBatches).Where(entsql.EQ("id", id)).Query()
	if _, err := r.exec(ctx, query, args); err != nil {
		return fmt.Errorf("delete batch %s: %w", id, err)
	}
	return nil
}

func (r *batchRepo) DeleteAllBatches(ctx context.Context) error {
	return r.atomic(ctx, func(tx *sqlRepos) error {
		query, args := builder().Delete(tableProblems).Query()
		if _, err := tx.exec(ctx, query, args); err != nil {
			return fmt.Errorf("delete problems: %w", err)
		}
		query, args = builder().Delete(tableBatches).Query()
		if _, err := tx.exec(ctx, query, args); err != nil {
			return fmt.Errorf("delete batches: %w", err)
		}
		return nil
	})
}

func (r *batchRepo) ProblemsByBatch(ctx context.Context, batchID string) ([]Problem, error) {
	query, args := builder().Select(problemColumns...).
		From(entsql.Table(tableProblems)).
		Where(entsql.EQ("batch_id", batchID)).
		OrderBy(problemOrder...).
		Query()
	problems, err := r.queryProblems(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("query problems of batch %s: %w", batchID, err)
	}
	return problems, nil
}

func (r *batchRepo) UnsolvedProblems(ctx context.Context, batchID string, limit int) ([]Problem, error) {
	pred := entsql.EQ("is_completed", 0)
	if batchID != "" {
		pred = entsql.And(entsql.EQ("batch_id", batchID), pred)
	}
	sel := builder().Select(problemColumns...).
		From(entsql.Table(tableProblems)).
		Where(pred).
		OrderBy(problemOrder...)
	if limit > 0 {
		sel.Limit(limit)
	}

	query, args := sel.Query()
	problems, err := r.queryProblems(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("query unsolved problems: %w", err)
	}
	return problems, nil
}

func (r *batchRepo) GetProblem(ctx context.Context, id string) (*Problem, error) {
	query, args := builder().Select(problemColumns...).
		From(entsql.Table(tableProblems)).
		Where(entsql.EQ("id", id)).
		Query()
	problems, err := r.queryProblems(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("get problem %s: %w", id, err)
	}
	if len(problems) == 0 {
		return nil, nil
	}
	return &problems[0], nil
}

func (r *batchRepo) CompletedProblems(ctx context.Context) ([]Problem, error) {
	query, args := builder().Select(problemColumns...).
		From(entsql.Table(tableProblems)).
		Where(entsql.EQ("is_completed", 1)).
		OrderBy(problemOrder...).
		Query()
	problems, err := r.queryProblems(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("query completed problems: %w", err)
	}
	return problems, nil
}

func (r *batchRepo) BatchStats(ctx context.Context, batchID string) (BatchStats, error) {
	query, args := builder().Select("is_completed", entsql.Count("*")).
		From(entsql.Table(tableProblems)).
		Where(entsql.EQ("batch_id", batchID)).
		GroupBy("is_completed").
		Query()

	var stats BatchStats
	err := r.query(ctx, query, args, func(rows *entsql.Rows) error {
		var completed, n int
		if err := rows.Scan(&completed, &n); err != nil {
			return err
		}
		stats.Total += n
		if completed == 1 {
			stats.Completed += n
		}
		return nil
	})
	if err != nil {
		return BatchStats{}, fmt.Errorf("count problems of batch %s: %w", batchID, err)
	}
	return stats, nil
}

func (r *batchRepo) MarkCompleted(ctx context.Context, problemID, userAnswer string) error {
	query, args := builder().Update(tableProblems).
		Set("is_completed", 1).
		Set("user_answer", userAnswer).
		Set("updated_at", r.timestamp()).
		Where(entsql.EQ("id", problemID)).
		Query()
	return r.updateOne(ctx, query, args, problemID)
}

func (r *batchRepo) MarkSolutionShown(ctx context.Context, problemID string) error {
	query, args := builder().Update(tableProblems).
		Set("solution_steps_shown", 1).
		Set("updated_at", r.timestamp()).
		Where(entsql.EQ("id", problemID)).
		Query()
	return r.updateOne(ctx, query, args, problemID)
}

func (r *batchRepo) updateOne(ctx context.Context, query string, args []any, problemID string) error {
	res, err := r.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update problem %s: %w", problemID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update problem %s: %w", problemID, err)
	}
	if n == 0 {
		return fmt.Errorf("problem %s: %w", problemID, ErrNotFound)
	}
	return nil
}

func (r *batchRepo) ResetProblems(ctx context.Context) error {
	return r.resetProblems(ctx)
}

func (r *sqlRepos) resetProblems(ctx context.Context) error {
	query, args := builder().Update(tableProblems).
		Set("is_completed", 0).
		SetNull("user_answer").
		Set("updated_at", r.timestamp()).
		Where(entsql.Or(entsql.EQ("is_completed", 1), entsql.NotNull("user_answer"))).
		Query()
	if _, err := r.exec(ctx, query, args); err != nil {
		return fmt.Errorf("reset problems: %w", err)
	}
	return nil
}

func (r *sqlRepos) queryBatches(ctx context.Context, query string, args []any) ([]Batch, error) {
	var batches []Batch
	err := r.query(ctx, query, args, func(rows *entsql.Rows) error {
		var (
			b                  Batch
			genDate, importedAt string
		)
		if err := rows.Scan(&b.ID, &genDate, &b.SourceURL, &b.ProblemCount, &importedAt); err != nil {
			return err
		}
		var err error
		if b.GenerationDate, err = parseTime(genDate); err != nil {
			return err
		}
		if b.ImportedAt, err = parseTime(importedAt); err != nil {
			return err
		}
		batches = append(batches, b)
		return nil
	})
	return batches, err
}

func (r *sqlRepos) queryProblems(ctx context.Context, query string, args []any) ([]Problem, error) {
	var problems []Problem
	err := r.query(ctx, query, args, func(rows *entsql.Rows) error {
		p, err := scanProblem(rows)
		if err != nil {
			return err
		}
		problems = append(problems, p)
		return nil
	})
	return problems, err
}

func scanProblem(rows *entsql.Rows) (Problem, error) {
	var (
		p                       Problem
		answer, steps, vars     string
		difficulty, problemType string
		completed, shown        int
		userAnswer              sql.NullString
		createdAt, updatedAt    string
	)
	err := rows.Scan(&p.ID, &p.BatchID, &p.Ordinal, &p.Equation, &p.Direction, &answer,
		&steps, &vars, &difficulty, &problemType,
		&completed, &userAnswer, &shown, &createdAt, &updatedAt)
	if err != nil {
		return Problem{}, err
	}

	p.Answer = decodeAnswer(answer)
	if err := json.Unmarshal([]byte(steps), &p.SolutionSteps); err != nil {
		return Problem{}, fmt.Errorf("decode solution steps of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(vars), &p.Variables); err != nil {
		return Problem{}, fmt.Errorf("decode variables of %s: %w", p.ID, err)
	}
	p.Difficulty = Difficulty(difficulty)
	p.ProblemType = ProblemType(problemType)
	p.IsCompleted = completed == 1
	p.SolutionStepsShown = shown == 1
	if userAnswer.Valid {
		p.UserAnswer = &userAnswer.String
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return Problem{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Problem{}, err
	}
	return p, nil
}

func firstBatch(batches []Batch) *Batch {
	if len(batches) == 0 {
		return nil
	}
	return &batches[0]
}

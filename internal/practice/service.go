// Package practice serves problems to the learner and records their answers.
package practice

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/algebrix/internal/answer"
	"github.com/abhisek/algebrix/internal/logging"
	"github.com/abhisek/algebrix/internal/store"
)

// ErrAlreadyAnswered is returned by SubmitFirstAnswer for a problem that
// already has a recorded answer.
var ErrAlreadyAnswered = errors.New("problem already answered")

// Service provides problem selection and answer submission over a store
// backend.
type Service struct {
	backend store.Backend
	checker answer.Checker
	logger  *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithChecker replaces the default answer checker.
func WithChecker(c answer.Checker) Option {
	return func(s *Service) {
		if c != nil {
			s.checker = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(l) }
}

// NewService creates a practice service.
func NewService(backend store.Backend, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		checker: answer.Default,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextProblem returns the first unsolved problem of the current batch, or
// nil if none remain. When no current batch is set, or it no longer exists,
// the latest imported batch becomes current. Returns nil when there are no
// batches at all.
func (s *Service) NextProblem(ctx context.Context) (*store.Problem, error) {
	batchID, settled, err := currentBatch(ctx, s.backend)
	if err == nil && !settled {
		err = s.backend.WithTx(ctx, func(repos store.Repos) error {
			var err error
			batchID, err = s.advanceBatch(ctx, repos)
			return err
		})
	}
	if err != nil {
		return nil, fmt.Errorf("next problem: %w", err)
	}
	if batchID == "" {
		return nil, nil
	}

	unsolved, err := s.backend.Batches().UnsolvedProblems(ctx, batchID, 1)
	if err != nil {
		return nil, fmt.Errorf("next problem: %w", err)
	}
	if len(unsolved) == 0 {
		return nil, nil
	}
	return &unsolved[0], nil
}

// currentBatch resolves the current batch id without writing. settled is
// false when the pointer is unset or dangling and must first be moved to id,
// or cleared when id is empty.
func currentBatch(ctx context.Context, repos store.Repos) (id string, settled bool, err error) {
	progress, err := repos.Progress().Get(ctx)
	if err != nil {
		return "", false, err
	}
	pointed := progress != nil && progress.CurrentBatchID != nil
	if pointed {
		b, err := repos.Batches().GetBatch(ctx, *progress.CurrentBatchID)
		if err != nil {
			return "", false, err
		}
		if b != nil {
			return b.ID, true, nil
		}
	}

	latest, err := repos.Batches().LatestBatch(ctx)
	if err != nil {
		return "", false, err
	}
	if latest == nil {
		return "", !pointed, nil
	}
	return latest.ID, false, nil
}

// advanceBatch moves the pointer to the latest batch when it is unset or
// dangling, and clears it when no batch is left.
func (s *Service) advanceBatch(ctx context.Context, repos store.Repos) (string, error) {
	id, settled, err := currentBatch(ctx, repos)
	if err != nil || settled {
		return id, err
	}
	if id == "" {
		s.logger.Debug("current batch no longer exists")
		_, err = repos.Progress().Update(ctx, store.ProgressUpdate{ClearCurrentBatch: true})
		return "", err
	}

	if _, err := repos.Progress().Update(ctx, store.ProgressUpdate{CurrentBatchID: &id}); err != nil {
		return "", err
	}
	s.logger.Info("current batch set", zap.String("batch_id", id))
	return id, nil
}

// Check judges raw against the problem's canonical answer.
func (s *Service) Check(p *store.Problem, raw string) bool {
	return s.checker.IsCorrect(raw, p.Answer)
}

// SubmitAnswer marks the problem completed with userAnswer and counts the
// attempt, plus a correct answer when isCorrect, in one transaction. An
// unknown problem returns store.ErrNotFound and changes nothing.
func (s *Service) SubmitAnswer(ctx context.Context, problemID, userAnswer string, isCorrect bool) (*store.UserProgress, error) {
	return s.submit(ctx, problemID, userAnswer, isCorrect, false)
}

// SubmitFirstAnswer is SubmitAnswer for a problem that has no recorded
// answer yet. A completed problem returns ErrAlreadyAnswered and changes
// nothing; the check runs in the same transaction as the update.
func (s *Service) SubmitFirstAnswer(ctx context.Context, problemID, userAnswer string, isCorrect bool) (*store.UserProgress, error) {
	return s.submit(ctx, problemID, userAnswer, isCorrect, true)
}

func (s *Service) submit(ctx context.Context, problemID, userAnswer string, isCorrect, once bool) (*store.UserProgress, error) {
	correct := 0
	if isCorrect {
		correct = 1
	}

	var progress *store.UserProgress
	err := s.backend.WithTx(ctx, func(repos store.Repos) error {
		if once {
			p, err := repos.Batches().GetProblem(ctx, problemID)
			if err != nil {
				return err
			}
			if p == nil {
				return store.ErrNotFound
			}
			if p.IsCompleted {
				return ErrAlreadyAnswered
			}
		}
		if err := repos.Batches().MarkCompleted(ctx, problemID, userAnswer); err != nil {
			return err
		}
		var err error
		progress, err = repos.Progress().Increment(ctx, 1, correct)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("submit answer for %s: %w", problemID, err)
	}

	s.logger.Debug("answer recorded",
		zap.String("problem_id", problemID),
		zap.Bool("correct", isCorrect),
		zap.Int("attempted", progress.ProblemsAttempted),
	)
	return progress, nil
}

// ShowSolution flags that the worked solution of a problem was viewed and
// returns the problem.
func (s *Service) ShowSolution(ctx context.Context, problemID string) (*store.Problem, error) {
	var p *store.Problem
	err := s.backend.WithTx(ctx, func(repos store.Repos) error {
		if err := repos.Batches().MarkSolutionShown(ctx, problemID); err != nil {
			return err
		}
		var err error
		p, err = repos.Batches().GetProblem(ctx, problemID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("show solution for %s: %w", problemID, err)
	}
	return p, nil
}

// ResetProgress zeroes the counters and marks every problem unsolved.
func (s *Service) ResetProgress(ctx context.Context) error {
	if err := s.backend.Progress().Reset(ctx); err != nil {
		return fmt.Errorf("reset progress: %w", err)
	}
	s.logger.Info("progress reset")
	return nil
}

// ClearAll deletes every batch along with the learner's progress.
func (s *Service) ClearAll(ctx context.Context) error {
	err := s.backend.WithTx(ctx, func(repos store.Repos) error {
		if err := repos.Batches().DeleteAllBatches(ctx); err != nil {
			return err
		}
		if err := repos.Progress().Reset(ctx); err != nil {
			return err
		}
		_, err := repos.Progress().Update(ctx, store.ProgressUpdate{ClearCurrentBatch: true})
		return err
	})
	if err != nil {
		return fmt.Errorf("clear all: %w", err)
	}
	s.logger.Info("all batches and progress cleared")
	return nil
}

// Progress returns the progress record, creating it when absent.
func (s *Service) Progress(ctx context.Context) (*store.UserProgress, error) {
	p, err := s.backend.Progress().Update(ctx, store.ProgressUpdate{})
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return p, nil
}

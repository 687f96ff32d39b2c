package practice

import (
	"context"
	"fmt"

	"github.com/abhisek/algebrix/internal/store"
)

// TopicAccuracy summarizes the learner's completed problems of one type.
type TopicAccuracy struct {
	ProblemType store.ProblemType
	Attempted   int
	Correct     int
	Incorrect   int
}

// Rate returns Correct/Attempted, or 0 when nothing was attempted.
func (a TopicAccuracy) Rate() float64 {
	if a.Attempted == 0 {
		return 0
	}
	return float64(a.Correct) / float64(a.Attempted)
}

// TopicAccuracy judges the stored answer of every completed problem and
// groups the results by problem type, in store.ProblemTypes order. Types
// with no completed problems are omitted.
func (s *Service) TopicAccuracy(ctx context.Context) ([]TopicAccuracy, error) {
	completed, err := s.backend.Batches().CompletedProblems(ctx)
	if err != nil {
		return nil, fmt.Errorf("topic accuracy: %w", err)
	}

	byType := make(map[store.ProblemType]*TopicAccuracy)
	for i := range completed {
		p := &completed[i]
		acc := byType[p.ProblemType]
		if acc == nil {
			acc = &TopicAccuracy{ProblemType: p.ProblemType}
			byType[p.ProblemType] = acc
		}
		acc.Attempted++
		if p.UserAnswer != nil && s.Check(p, *p.UserAnswer) {
			acc.Correct++
		} else {
			acc.Incorrect++
		}
	}

	var out []TopicAccuracy
	for _, t := range store.ProblemTypes {
		if acc := byType[t]; acc != nil {
			out = append(out, *acc)
		}
	}
	return out, nil
}

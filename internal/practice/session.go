package practice

import (
	"context"
	"errors"
	"sync"

	"github.com/abhisek/algebrix/internal/store"
)

// Session tracks which problems already had an answer recorded during one
// sitting, so repeated submissions of the same problem count once.
type Session struct {
	svc *Service

	mu       sync.Mutex
	recorded map[string]bool
}

// NewSession starts a session on svc.
func (s *Service) NewSession() *Session {
	return &Session{svc: s, recorded: make(map[string]bool)}
}

// Submit checks raw against p and records the outcome unless an answer for p
// was already recorded, in this session or in the store. It returns whether
// raw is correct and whether this call recorded it.
func (s *Session) Submit(ctx context.Context, p *store.Problem, raw string) (correct, recorded bool, err error) {
	correct = s.svc.Check(p, raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorded[p.ID] {
		return correct, false, nil
	}
	_, err = s.svc.SubmitFirstAnswer(ctx, p.ID, raw, correct)
	switch {
	case errors.Is(err, ErrAlreadyAnswered):
		s.recorded[p.ID] = true
		return correct, false, nil
	case err != nil:
		return correct, false, err
	}
	s.recorded[p.ID] = true
	return correct, true, nil
}

// Recorded reports whether an answer for problemID was recorded.
func (s *Session) Recorded(problemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorded[problemID]
}

// Forget clears the recorded flag of problemID, as when the problem is
// served again after a reset.
func (s *Session) Forget(problemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recorded, problemID)
}

package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProgressID is the key of the single learner progress record.
const ProgressID = "user-1"

// ErrNotFound is returned by mutations that target a row which does not exist.
// Lookups report absence as a nil result instead.
var ErrNotFound = errors.New("not found")

// ErrInvalidProgress is returned when a progress update would leave
// ProblemsCorrect above ProblemsAttempted or either counter negative.
var ErrInvalidProgress = errors.New("invalid progress counters")

// Difficulty grades a problem.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ProblemType identifies the kind of algebra a problem exercises.
type ProblemType string

const (
	TypeLinearOneVariable        ProblemType = "linear-one-variable"
	TypeLinearTwoVariables       ProblemType = "linear-two-variables"
	TypeQuadraticFactoring       ProblemType = "quadratic-factoring"
	TypeQuadraticFormula         ProblemType = "quadratic-formula"
	TypePolynomialSimplification ProblemType = "polynomial-simplification"
)

// ProblemTypes lists every known problem type in display order.
var ProblemTypes = []ProblemType{
	TypeLinearOneVariable,
	TypeLinearTwoVariables,
	TypeQuadraticFactoring,
	TypeQuadraticFormula,
	TypePolynomialSimplification,
}

// Valid reports whether t is a known problem type.
func (t ProblemType) Valid() bool {
	for _, known := range ProblemTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Answer is a canonical answer: a single value, or several values when the
// problem has multiple roots. Numbers are kept in their decimal text form.
type Answer struct {
	Values   []string
	Multiple bool
}

// SingleAnswer returns a one-value answer.
func SingleAnswer(v string) Answer {
	return Answer{Values: []string{v}}
}

// MultiAnswer returns a multi-valued answer.
func MultiAnswer(vs ...string) Answer {
	return Answer{Values: vs, Multiple: true}
}

// String renders the answer for display.
func (a Answer) String() string {
	return strings.Join(a.Values, ", ")
}

// MarshalJSON encodes a multi-valued answer as an array and a single value as a string.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Multiple {
		vals := a.Values
		if vals == nil {
			vals = []string{}
		}
		return json.Marshal(vals)
	}
	if len(a.Values) == 0 {
		return json.Marshal("")
	}
	return json.Marshal(a.Values[0])
}

// UnmarshalJSON accepts a string, a number, or an array of strings and numbers.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("decode answer array: %w", err)
		}
		vals := make([]string, 0, len(items))
		for _, item := range items {
			v, err := scalarAnswer(item)
			if err != nil {
				return err
			}
			vals = append(vals, v)
		}
		*a = MultiAnswer(vals...)
		return nil
	}

	v, err := scalarAnswer(data)
	if err != nil {
		return err
	}
	*a = SingleAnswer(v)
	return nil
}

func scalarAnswer(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("decode answer: %w", err)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	default:
		return "", fmt.Errorf("answer must be a string or number, got %T", v)
	}
}

// encodeAnswer returns the stored text form: a JSON array for multiple
// values, the bare value otherwise. A single value that would read back as
// JSON (leading '[' or '"') is stored as a JSON string.
func encodeAnswer(a Answer) (string, error) {
	if a.Multiple {
		b, err := a.MarshalJSON()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	if len(a.Values) == 0 {
		return "", nil
	}
	v := a.Values[0]
	if !strings.HasPrefix(v, "[") && !strings.HasPrefix(v, `"`) {
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeAnswer(s string) Answer {
	switch {
	case strings.HasPrefix(s, "["):
		var a Answer
		if err := a.UnmarshalJSON([]byte(s)); err == nil && a.Multiple {
			return a
		}
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return SingleAnswer(v)
		}
	}
	return SingleAnswer(s)
}

// SolutionStep is one line of a worked solution.
type SolutionStep struct {
	Explanation    string `json:"explanation"`
	MathExpression string `json:"mathExpression"`
	IsEquation     bool   `json:"isEquation"`
}

// Batch is a dated set of problems delivered together.
type Batch struct {
	ID             string
	GenerationDate time.Time
	SourceURL      string
	ProblemCount   int
	ImportedAt     time.Time
}

// BatchInput describes a batch to insert. An empty ID is generated.
type BatchInput struct {
	ID             string
	GenerationDate time.Time
	SourceURL      string
	ProblemCount   int
}

// Problem is a stored practice problem.
type Problem struct {
	ID                 string
	BatchID            string
	Ordinal            int
	Equation           string
	Direction          string
	Answer             Answer
	SolutionSteps      []SolutionStep
	Variables          []string
	Difficulty         Difficulty
	ProblemType        ProblemType
	IsCompleted        bool
	UserAnswer         *string
	SolutionStepsShown bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ProblemInput describes a problem to insert with its batch. An empty ID is
// derived from the batch id and position; an empty BatchID means the batch
// being inserted.
type ProblemInput struct {
	ID            string         `json:"id,omitempty"`
	BatchID       string         `json:"batchId,omitempty"`
	Equation      string         `json:"equation"`
	Direction     string         `json:"direction"`
	Answer        Answer         `json:"answer"`
	SolutionSteps []SolutionStep `json:"solutionSteps"`
	Variables     []string       `json:"variables"`
	Difficulty    Difficulty     `json:"difficulty"`
	ProblemType   ProblemType    `json:"problemType"`
}

// problemID derives the id of the n-th (1-based) problem of a batch.
func problemID(batchID string, n int) string {
	return fmt.Sprintf("%s-problem-%d", batchID, n)
}

func validateProblem(p ProblemInput) error {
	if !p.Difficulty.Valid() {
		return fmt.Errorf("problem %s: unknown difficulty %q", p.ID, p.Difficulty)
	}
	if !p.ProblemType.Valid() {
		return fmt.Errorf("problem %s: unknown problem type %q", p.ID, p.ProblemType)
	}
	return nil
}

// UserProgress is the learner's running tally and active batch pointer.
type UserProgress struct {
	ID                string
	CurrentBatchID    *string
	ProblemsAttempted int
	ProblemsCorrect   int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProgressUpdate merges the non-nil fields into the progress record.
// ClearCurrentBatch unsets the batch pointer.
type ProgressUpdate struct {
	CurrentBatchID    *string
	ClearCurrentBatch bool
	ProblemsAttempted *int
	ProblemsCorrect   *int
}

func (u ProgressUpdate) apply(p *UserProgress) error {
	switch {
	case u.ClearCurrentBatch:
		p.CurrentBatchID = nil
	case u.CurrentBatchID != nil:
		id := *u.CurrentBatchID
		p.CurrentBatchID = &id
	}
	if u.ProblemsAttempted != nil {
		p.ProblemsAttempted = *u.ProblemsAttempted
	}
	if u.ProblemsCorrect != nil {
		p.ProblemsCorrect = *u.ProblemsCorrect
	}
	return checkCounters(p.ProblemsAttempted, p.ProblemsCorrect)
}

func checkCounters(attempted, correct int) error {
	if attempted < 0 || correct < 0 || correct > attempted {
		return fmt.Errorf("%w: attempted=%d correct=%d", ErrInvalidProgress, attempted, correct)
	}
	return nil
}

// BatchStats counts a batch's problems.
type BatchStats struct {
	Total     int
	Completed int
}

// DayBounds returns the UTC calendar day containing t as [start, end).
func DayBounds(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

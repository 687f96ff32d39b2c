package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Answer
	}{
		{"string", `"x = 3"`, SingleAnswer("x = 3")},
		{"integer", `4`, SingleAnswer("4")},
		{"decimal", `-2.5`, SingleAnswer("-2.5")},
		{"mixed array", `[2, "-3", 0.5]`, MultiAnswer("2", "-3", "0.5")},
		{"empty array", `[]`, MultiAnswer()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Answer
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want.Multiple, got.Multiple)
			assert.ElementsMatch(t, tt.want.Values, got.Values)
		})
	}
}

func TestAnswerUnmarshalJSON_Rejects(t *testing.T) {
	for _, in := range []string{`{"a":1}`, `true`, `[[1]]`, `null`} {
		var a Answer
		assert.Error(t, json.Unmarshal([]byte(in), &a), in)
	}
}

func TestAnswerStorageForm(t *testing.T) {
	s, err := encodeAnswer(MultiAnswer("1", "-4"))
	require.NoError(t, err)
	assert.Equal(t, `["1","-4"]`, s)
	assert.Equal(t, MultiAnswer("1", "-4"), decodeAnswer(s))

	s, err = encodeAnswer(SingleAnswer("3/4"))
	require.NoError(t, err)
	assert.Equal(t, "3/4", s)
	assert.Equal(t, SingleAnswer("3/4"), decodeAnswer(s))

	// Bracketed text that is not a JSON array stays a single value.
	assert.Equal(t, SingleAnswer("[0, 1)"), decodeAnswer("[0, 1)"))
}

func TestProgressUpdateApply(t *testing.T) {
	p := &UserProgress{ProblemsAttempted: 3, ProblemsCorrect: 2}
	id := "B"
	attempted := 5
	require.NoError(t, ProgressUpdate{CurrentBatchID: &id, ProblemsAttempted: &attempted}.apply(p))
	assert.Equal(t, 5, p.ProblemsAttempted)
	assert.Equal(t, 2, p.ProblemsCorrect)
	require.NotNil(t, p.CurrentBatchID)
	assert.Equal(t, "B", *p.CurrentBatchID)

	// The record keeps its own copy of the id.
	id = "changed"
	assert.Equal(t, "B", *p.CurrentBatchID)

	correct := 6
	assert.ErrorIs(t, ProgressUpdate{ProblemsCorrect: &correct}.apply(p), ErrInvalidProgress)
}

func TestDayBounds(t *testing.T) {
	start, end := DayBounds(time.Date(2024, 1, 1, 23, 30, 0, 0, time.FixedZone("EST", -5*3600)))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), end)
}

func TestEnumsValid(t *testing.T) {
	assert.True(t, DifficultyHard.Valid())
	assert.False(t, Difficulty("extreme").Valid())
	for _, pt := range ProblemTypes {
		assert.True(t, pt.Valid(), pt)
	}
	assert.False(t, ProblemType("calculus").Valid())
}

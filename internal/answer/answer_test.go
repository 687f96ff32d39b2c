package answer

import (
	"testing"

	"github.com/abhisek/algebrix/internal/store"
)

func TestIsCorrect_Single(t *testing.T) {
	canonical := store.SingleAnswer("1/2")

	tests := []struct {
		input string
		want  bool
	}{
		{"1/2", true},
		{"2/4", true},
		{" 0.5 ", true},
		{"0.50", true},
		{`\frac{1}{2}`, true},
		{`\dfrac{2}{4}`, true},
		{"x = 1/2", true},
		{"$x=\\frac{1}{2}$", true},
		{"1/3", false},
		{"", false},
		{"abc", false},
		{"1/0", false},
	}

	for _, tc := range tests {
		got := IsCorrect(tc.input, canonical)
		if got != tc.want {
			t.Errorf("IsCorrect(%q, 1/2) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestIsCorrect_Integer(t *testing.T) {
	canonical := store.SingleAnswer("-7")

	tests := []struct {
		input string
		want  bool
	}{
		{"-7", true},
		{"−7", true},
		{"-007", true},
		{"-7.0", true},
		{"-(7)", true},
		{"7", false},
		{"-7, 2", false},
	}

	for _, tc := range tests {
		got := IsCorrect(tc.input, canonical)
		if got != tc.want {
			t.Errorf("IsCorrect(%q, -7) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestIsCorrect_NegativeFraction(t *testing.T) {
	canonical := store.SingleAnswer(`-\frac{3}{4}`)

	for _, input := range []string{"-3/4", "-0.75", `\frac{-3}{4}`, "-6/8"} {
		if !IsCorrect(input, canonical) {
			t.Errorf("IsCorrect(%q, -3/4) = false, want true", input)
		}
	}
	if IsCorrect("3/4", canonical) {
		t.Error("IsCorrect(3/4, -3/4) = true, want false")
	}
}

func TestIsCorrect_MultipleRoots(t *testing.T) {
	canonical := store.MultiAnswer("2", "-3")

	tests := []struct {
		input string
		want  bool
	}{
		{"2, -3", true},
		{"-3, 2", true},
		{"x = 2 or x = -3", true},
		{"x=-3; x=2", true},
		{"2", false},
		{"2, 3", false},
		{"2, -3, 4", false},
		{"2, 2", false},
	}

	for _, tc := range tests {
		got := IsCorrect(tc.input, canonical)
		if got != tc.want {
			t.Errorf("IsCorrect(%q, [2 -3]) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestIsCorrect_PlusMinus(t *testing.T) {
	canonical := store.MultiAnswer("4", "-4")

	for _, input := range []string{"±4", `x = \pm 4`, "4, -4"} {
		if !IsCorrect(input, canonical) {
			t.Errorf("IsCorrect(%q, ±4) = false, want true", input)
		}
	}
}

func TestIsCorrect_NamedVariables(t *testing.T) {
	canonical := store.SingleAnswer("x = 2, y = 3")

	tests := []struct {
		input string
		want  bool
	}{
		{"x = 2, y = 3", true},
		{"y=3, x=2", true},
		{"X = 2 and Y = 3", true},
		{"2, 3", true},
		{"x = 3, y = 2", false},
	}

	for _, tc := range tests {
		got := IsCorrect(tc.input, canonical)
		if got != tc.want {
			t.Errorf("IsCorrect(%q, x=2,y=3) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestIsCorrect_Expression(t *testing.T) {
	canonical := store.SingleAnswer("x^2 + 2x + 1")

	tests := []struct {
		input string
		want  bool
	}{
		{"x^2+2x+1", true},
		{"X^2 + 2X + 1", true},
		{"x^{2} + 2x + 1", true},
		{"x^2 + 2x - 1", false},
	}

	for _, tc := range tests {
		got := IsCorrect(tc.input, canonical)
		if got != tc.want {
			t.Errorf("IsCorrect(%q, x^2+2x+1) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestCheckerFunc(t *testing.T) {
	var c Checker = CheckerFunc(func(raw string, _ store.Answer) bool { return raw == "yes" })
	if !c.IsCorrect("yes", store.Answer{}) {
		t.Error("expected CheckerFunc to delegate")
	}
}

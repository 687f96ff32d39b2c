package components

import (
	"strings"
	"testing"

	"charm.land/lipgloss/v2"
)

func TestProgressBarWidth(t *testing.T) {
	bar := Fraction("Done", 1, 4, 30)
	if got := lipgloss.Width(bar.View()); got > 30 {
		t.Fatalf("expected width at most 30, got %d", got)
	}
	if !strings.Contains(bar.View(), "25%") {
		t.Fatalf("expected 25%% in %q", bar.View())
	}
}

func TestFractionEmptyTotal(t *testing.T) {
	if p := Fraction("", 0, 0, 10).Percent; p != 0 {
		t.Fatalf("expected 0, got %v", p)
	}
}

func TestTableContainsCells(t *testing.T) {
	out := Table([]string{"Batch", "Solved"}, [][]string{{"2024-01-01", "3/10"}})
	for _, want := range []string{"Batch", "Solved", "2024-01-01", "3/10"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

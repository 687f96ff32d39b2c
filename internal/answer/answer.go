// Package answer decides whether a learner's raw input matches a canonical answer.
package answer

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/abhisek/algebrix/internal/store"
)

// Checker judges a learner's raw answer. Implementations must be pure.
type Checker interface {
	IsCorrect(raw string, canonical store.Answer) bool
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(raw string, canonical store.Answer) bool

func (f CheckerFunc) IsCorrect(raw string, canonical store.Answer) bool { return f(raw, canonical) }

// Normalizing is the default Checker.
//
// Normalization rules:
//   - Whitespace, $ delimiters and \left / \right are ignored
//   - \frac{a}{b} and \dfrac{a}{b} are read as a/b, \cdot as *, \pm and ± as two values
//   - Numbers compare by value: "0.5", "1/2" and "2/4" are equal
//   - Other expressions compare case-insensitively as text
//   - "x = 3" matches "3"; when both sides name the variable, the names must agree
//   - Several values (separated by ",", ";", "or", "and") compare as a set
type Normalizing struct{}

// Default is the checker used when none is configured.
var Default Checker = Normalizing{}

// IsCorrect reports whether raw matches canonical under the Default checker.
func IsCorrect(raw string, canonical store.Answer) bool {
	return Default.IsCorrect(raw, canonical)
}

func (Normalizing) IsCorrect(raw string, canonical store.Answer) bool {
	learner := splitItems(raw)
	if len(learner) == 0 {
		return false
	}

	var want []item
	for _, v := range canonical.Values {
		want = append(want, splitItems(v)...)
	}
	if len(want) != len(learner) {
		return false
	}

	used := make([]bool, len(want))
	for _, got := range learner {
		matched := false
		for i, w := range want {
			if !used[i] && got.matches(w) {
				used[i] = true
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// item is one normalized value, optionally bound to a variable.
type item struct {
	variable string
	value    string
}

func (a item) matches(b item) bool {
	if a.variable != "" && b.variable != "" && a.variable != b.variable {
		return false
	}
	return a.value == b.value
}

var (
	separatorRe  = regexp.MustCompile(`\s*(?:,|;|\bor\b|\band\b)\s*`)
	assignmentRe = regexp.MustCompile(`^([a-zA-Z])\s*=\s*(.+)$`)
	fracRe       = regexp.MustCompile(`\\d?frac\s*\{([^{}]*)\}\s*\{([^{}]*)\}`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

var latexReplacer = strings.NewReplacer(
	"$", "",
	`\left`, "",
	`\right`, "",
	`\cdot`, "*",
	`\times`, "*",
	"−", "-",
	`\,`, "",
	`\ `, "",
)

// splitItems normalizes s and splits it into its values.
func splitItems(s string) []item {
	s = latexReplacer.Replace(strings.TrimSpace(s))
	s = fracRe.ReplaceAllString(s, "($1)/($2)")

	var items []item
	for _, part := range separatorRe.Split(s, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var variable string
		if m := assignmentRe.FindStringSubmatch(part); m != nil {
			variable = strings.ToLower(m[1])
			part = m[2]
		}
		for _, v := range expandPlusMinus(part) {
			items = append(items, item{variable: variable, value: normalizeAnswer(v)})
		}
	}
	return items
}

// expandPlusMinus turns "±2" into "2" and "-2".
func expandPlusMinus(s string) []string {
	for _, pm := range []string{`\pm`, "±"} {
		if strings.HasPrefix(s, pm) {
			rest := strings.TrimSpace(strings.TrimPrefix(s, pm))
			return []string{rest, "-" + rest}
		}
	}
	return []string{s}
}

// normalizeAnswer returns a canonical form: a reduced rational for numeric
// input, lower-case text without whitespace otherwise.
func normalizeAnswer(s string) string {
	compact := spaceRe.ReplaceAllString(s, "")
	if r, ok := parseNumber(compact); ok {
		return r.RatString()
	}
	compact = strings.NewReplacer("{", "", "}", "").Replace(compact)
	if r, ok := parseNumber(compact); ok {
		return r.RatString()
	}
	return strings.ToLower(compact)
}

// parseNumber accepts integers, decimals and fractions whose parts are
// optionally parenthesized, e.g. "-3", "2.50", "(3)/(4)", "-(1)/(2)".
func parseNumber(s string) (*big.Rat, bool) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	num, den, isFrac := strings.Cut(s, "/")
	n, ok := parseDecimal(unwrapParens(num))
	if !ok {
		return nil, false
	}
	if isFrac {
		d, ok := parseDecimal(unwrapParens(den))
		if !ok || d.Sign() == 0 {
			return nil, false
		}
		n.Quo(n, d)
	}
	if neg {
		n.Neg(n)
	}
	return n, true
}

func parseDecimal(s string) (*big.Rat, bool) {
	if s == "" || strings.ContainsAny(s, "/eE") {
		return nil, false
	}
	r, ok := new(big.Rat).SetString(s)
	return r, ok
}

func unwrapParens(s string) string {
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		s = s[1 : len(s)-1]
	}
	return s
}

package captcha

import "strings"

// Normalize strips whitespace and anything outside [0-9A-Za-z], then
// uppercases. Applied to every raw OCR result before eligibility checks.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		}
	}
	return b.String()
}

// Eligible reports whether a normalized string matches the expected code
// format: exact length and every character in the allowed alphabet.
func (f Format) Eligible(s string) bool {
	if len(s) != f.Length {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(f.Alphabet, r) {
			return false
		}
	}
	return true
}

// Select normalizes and filters the raw candidates, then picks the most
// frequent eligible string. Frequency ties go to the string first produced
// by the earliest (strategy, config) pair, so repeated runs over identical
// inputs always agree. The second return is false when nothing is eligible.
func Select(candidates []Candidate, f Format) (string, bool) {
	type tally struct {
		count int
		first int
	}
	seen := make(map[string]*tally)
	for _, c := range candidates {
		n := Normalize(c.Text)
		if !f.Eligible(n) {
			continue
		}
		if t, ok := seen[n]; ok {
			t.count++
			continue
		}
		seen[n] = &tally{count: 1, first: c.Index}
	}

	best := ""
	var bestT tally
	for s, t := range seen {
		if best == "" || t.count > bestT.count || (t.count == bestT.count && t.first < bestT.first) {
			best, bestT = s, *t
		}
	}
	return best, best != ""
}

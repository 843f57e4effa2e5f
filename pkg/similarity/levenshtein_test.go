package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected int
	}{
		{name: "identical", a: "kitten", b: "kitten", expected: 0},
		{name: "classic", a: "kitten", b: "sitting", expected: 3},
		{name: "empty vs word", a: "", b: "abc", expected: 3},
		{name: "word vs empty", a: "abc", b: "", expected: 3},
		{name: "both empty", a: "", b: "", expected: 0},
		{name: "single substitution", a: "cat", b: "car", expected: 1},
		{name: "unicode runes", a: "héllo", b: "hello", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Levenshtein(tt.a, tt.b))
		})
	}
}

func TestLevenshteinSymmetric(t *testing.T) {
	assert.Equal(t, Levenshtein("flaw", "lawn"), Levenshtein("lawn", "flaw"))
}

func TestNormalizedLevenshtein(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{name: "identical gives zero", a: "same", b: "same", expected: 0.0},
		{name: "both empty gives zero", a: "", b: "", expected: 0.0},
		{name: "completely different gives one", a: "abc", b: "xyz", expected: 1.0},
		{name: "one empty gives one", a: "", b: "abcd", expected: 1.0},
		{name: "half different", a: "ab", b: "ax", expected: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, NormalizedLevenshtein(tt.a, tt.b), 0.001)
		})
	}
}

func TestNormalizedLevenshteinRange(t *testing.T) {
	pairs := [][2]string{
		{"GET /api/users/123 500", "GET /api/users/456 500"},
		{"connection refused", "payment accepted"},
		{"x", "a much longer string entirely"},
	}
	for _, p := range pairs {
		d := NormalizedLevenshtein(p[0], p[1])
		assert.GreaterOrEqual(t, d, 0.0)
		assert.LessOrEqual(t, d, 1.0)
	}
}

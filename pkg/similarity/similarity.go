// Package similarity provides text similarity metrics for event clustering.
package similarity

import "strings"

// Kind classifies a token for weighting purposes.
type Kind int

const (
	// KindWord is a plain word token.
	KindWord Kind = iota
	// KindTechnical is a pattern-extracted technical token (HTTP verb,
	// UUID, file extension, call expression, SQL keyword).
	KindTechnical
	// KindStatusCode is a 3-digit HTTP status token.
	KindStatusCode
	// KindNGram is a 2- or 3-gram generated over word tokens.
	KindNGram
)

// Token is a single weighted token produced by the tokenizer.
type Token struct {
	Text string
	Kind Kind
}

// stopWords are dropped during term extraction.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "shall": true,
	"this": true, "that": true, "these": true, "those": true,
	"and": true, "or": true, "but": true, "if": true, "then": true,
	"for": true, "from": true, "with": true, "about": true, "into": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "by": true,
	"it": true, "its": true, "which": true, "who": true, "what": true,
	"when": true, "where": true, "how": true, "why": true,
}

// IsStopWord reports whether a lowercased word is a stop word.
func IsStopWord(w string) bool {
	return stopWords[w]
}

// ExtractTerms tokenizes text into a set of meaningful lowercase terms,
// splitting on non-alphanumeric boundaries and dropping short words and
// stop words.
func ExtractTerms(text string) map[string]bool {
	terms := make(map[string]bool)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_')
	})
	for _, word := range words {
		if len(word) >= 2 && !stopWords[word] {
			terms[word] = true
		}
	}
	return terms
}

// Jaccard calculates the Jaccard similarity between two term sets.
// Returns a value between 0 (no overlap) and 1 (identical).
func Jaccard(set1, set2 map[string]bool) float64 {
	if len(set1) == 0 && len(set2) == 0 {
		return 1.0
	}
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for term := range set1 {
		if set2[term] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

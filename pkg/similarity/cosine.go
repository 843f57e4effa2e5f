package similarity

import "math"

// Cosine computes the cosine similarity of two term-frequency vectors.
// Returns 0 when either vector is empty or has zero magnitude.
func Cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for term, wa := range a {
		normA += wa * wa
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range b {
		normB += wb * wb
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TermFrequencies converts a token stream into a term-frequency vector
// suitable for Cosine.
func TermFrequencies(tokens []Token) map[string]float64 {
	freq := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		freq[tok.Text]++
	}
	return freq
}

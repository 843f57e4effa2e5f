package similarity

// Base weights per token kind. Status codes carry the technical weight
// doubled again; n-grams sit between plain words and technical tokens.
const (
	wordWeight      = 1.0
	technicalWeight = 3.0
	statusWeight    = technicalWeight * 2.0
	ngramWeight     = 1.5
)

// positionFactor decays a token's weight from 1.0 at the front of the
// stream toward 0.5 at the end, so leading tokens dominate.
func positionFactor(i, n int) float64 {
	if n <= 1 {
		return 1.0
	}
	return 1.0 - 0.5*float64(i)/float64(n-1)
}

func kindWeight(k Kind) float64 {
	switch k {
	case KindTechnical:
		return technicalWeight
	case KindStatusCode:
		return statusWeight
	case KindNGram:
		return ngramWeight
	default:
		return wordWeight
	}
}

// weightMap folds a token stream into per-text weights. Repeated tokens
// accumulate, which is how the tokenizer's double emission of technical
// tokens becomes a boost.
func weightMap(tokens []Token) map[string]float64 {
	weights := make(map[string]float64, len(tokens))
	n := len(tokens)
	for i, tok := range tokens {
		weights[tok.Text] += kindWeight(tok.Kind) * positionFactor(i, n)
	}
	return weights
}

// WeightedJaccard computes the weighted Jaccard similarity of two token
// streams: sum of per-token minimum weights over sum of maximum weights
// across the union. Returns 0 if either side is empty; an identical
// non-empty stream compared with itself yields 1.
func WeightedJaccard(a, b []Token) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	wa := weightMap(a)
	wb := weightMap(b)

	var minSum, maxSum float64
	for text, w := range wa {
		other := wb[text]
		if w < other {
			minSum += w
			maxSum += other
		} else {
			minSum += other
			maxSum += w
		}
	}
	for text, w := range wb {
		if _, seen := wa[text]; !seen {
			maxSum += w
		}
	}

	if maxSum == 0 {
		return 0.0
	}
	return minSum / maxSum
}

// Package tokenize turns raw event text into the weighted token stream
// consumed by the similarity metrics.
package tokenize

import (
	"regexp"
	"strings"

	"github.com/thebtf/distill/pkg/similarity"
)

// technicalPattern pairs a compiled matcher with the token kind it yields.
type technicalPattern struct {
	re   *regexp.Regexp
	kind similarity.Kind
}

// Technical extraction order matters: status codes are claimed before the
// generic word pass can swallow them, verbs before call expressions.
var technicalPatterns = []technicalPattern{
	{regexp.MustCompile(`\b(?:GET|POST|PUT|DELETE|PATCH|HEAD|OPTIONS)\b`), similarity.KindTechnical},
	{regexp.MustCompile(`\b[1-5][0-9]{2}\b`), similarity.KindStatusCode},
	{regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`), similarity.KindTechnical},
	{regexp.MustCompile(`\b[\w./-]+\.(?:go|js|ts|py|java|rb|rs|c|cpp|h|sql|sh|json|yaml|yml|toml|log|txt)\b`), similarity.KindTechnical},
	{regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_.]*\([^()]*\)`), similarity.KindTechnical},
	{regexp.MustCompile(`(?i)\b(?:SELECT|INSERT|UPDATE|UPSERT|FROM|WHERE|JOIN|GROUP BY|ORDER BY)\b`), similarity.KindTechnical},
}

// wordSplitter breaks the residual text on non-alphanumeric boundaries.
func wordSplitter(r rune) bool {
	return !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_')
}

// Tokenizer produces weighted token streams. It is stateless and safe
// for concurrent use.
type Tokenizer struct {
	maxNGram int
}

// New creates a Tokenizer generating up to 3-grams.
func New() *Tokenizer {
	return &Tokenizer{maxNGram: 3}
}

// Tokenize extracts technical tokens first, word-tokenizes the remainder
// with stop-word and single-character filtering, and appends 2- and
// 3-grams over the word tokens. Technical tokens are emitted twice as a
// weight boost.
func (t *Tokenizer) Tokenize(text string) []similarity.Token {
	var technical []similarity.Token
	residual := text

	for _, p := range t.patterns() {
		matches := p.re.FindAllString(residual, -1)
		if len(matches) == 0 {
			continue
		}
		for _, m := range matches {
			technical = append(technical, similarity.Token{Text: strings.ToLower(m), Kind: p.kind})
		}
		residual = p.re.ReplaceAllString(residual, " ")
	}

	var words []similarity.Token
	for _, w := range strings.FieldsFunc(strings.ToLower(residual), wordSplitter) {
		if len(w) < 2 || similarity.IsStopWord(w) {
			continue
		}
		words = append(words, similarity.Token{Text: w, Kind: similarity.KindWord})
	}

	ngrams := t.ngrams(words)

	out := make([]similarity.Token, 0, 2*len(technical)+len(words)+len(ngrams))
	out = append(out, technical...)
	out = append(out, technical...)
	out = append(out, words...)
	out = append(out, ngrams...)
	return out
}

func (t *Tokenizer) patterns() []technicalPattern {
	return technicalPatterns
}

// ngrams builds sliding 2..maxNGram grams over the word tokens, joined
// with underscores.
func (t *Tokenizer) ngrams(words []similarity.Token) []similarity.Token {
	var out []similarity.Token
	for n := 2; n <= t.maxNGram; n++ {
		if len(words) < n {
			break
		}
		for i := 0; i+n <= len(words); i++ {
			parts := make([]string, n)
			for j := 0; j < n; j++ {
				parts[j] = words[i+j].Text
			}
			out = append(out, similarity.Token{Text: strings.Join(parts, "_"), Kind: similarity.KindNGram})
		}
	}
	return out
}

package report

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCost counts the cl100k tokens a rendered report would occupy in
// an agent's context window.
func TokenCost(text string) (int, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return 0, fmt.Errorf("load tokenizer: %w", err)
	}

	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("encode report: %w", err)
	}
	return len(ids), nil
}

// WithTokenFooter appends the token cost to a Markdown report. Counting
// failures degrade to the unannotated report rather than erroring.
func WithTokenFooter(md string) string {
	n, err := TokenCost(md)
	if err != nil {
		return md
	}
	return fmt.Sprintf("%s\n---\n~%d tokens\n", md, n)
}

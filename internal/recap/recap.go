// Package recap builds a short heuristic narrative summary of a chat
// transcript: turn counts, files touched, errors hit, and decisions
// made. It is intentionally shallow; the clustering engine handles the
// heavy lifting for log-shaped input.
package recap

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Limits on the recap size.
const (
	maxFiles     = 10
	maxErrors    = 5
	maxDecisions = 5
)

var (
	roleRe     = regexp.MustCompile(`(?i)^(?:>\s*)?(user|human|assistant|ai|system|tool)\s*[:>]`)
	fileRe     = regexp.MustCompile(`\b[\w./-]+\.(?:go|js|ts|py|java|rb|rs|c|cpp|h|sql|sh|json|yaml|yml|toml|md)\b`)
	errorRe    = regexp.MustCompile(`(?i)\b(?:error|exception|panic|fail(?:ed|ure)?|traceback)\b`)
	decisionRe = regexp.MustCompile(`(?i)\b(?:decided|let's|instead of|going with|we(?:'ll| will) use|switch(?:ed|ing) to)\b`)
)

// Recap is the extracted transcript summary.
type Recap struct {
	Turns     map[string]int
	Files     []string
	Errors    []string
	Decisions []string
}

// Summarize scans a transcript and extracts the recap.
func Summarize(text string) *Recap {
	r := &Recap{Turns: make(map[string]int)}
	files := make(map[string]bool)

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := roleRe.FindStringSubmatch(trimmed); m != nil {
			role := strings.ToLower(m[1])
			switch role {
			case "human":
				role = "user"
			case "ai":
				role = "assistant"
			}
			r.Turns[role]++
		}

		for _, f := range fileRe.FindAllString(trimmed, -1) {
			files[f] = true
		}

		if errorRe.MatchString(trimmed) && len(r.Errors) < maxErrors {
			r.Errors = append(r.Errors, clip(trimmed, 120))
		}
		if decisionRe.MatchString(trimmed) && len(r.Decisions) < maxDecisions {
			r.Decisions = append(r.Decisions, clip(trimmed, 120))
		}
	}

	for f := range files {
		r.Files = append(r.Files, f)
	}
	sort.Strings(r.Files)
	if len(r.Files) > maxFiles {
		r.Files = r.Files[:maxFiles]
	}

	return r
}

// Markdown renders the recap as a bounded bullet list.
func (r *Recap) Markdown() string {
	var b strings.Builder
	b.WriteString("## Recap\n\n")

	if len(r.Turns) > 0 {
		var parts []string
		for _, role := range sortedRoles(r.Turns) {
			parts = append(parts, fmt.Sprintf("%d %s", r.Turns[role], role))
		}
		fmt.Fprintf(&b, "- Turns: %s\n", strings.Join(parts, ", "))
	}
	if len(r.Files) > 0 {
		fmt.Fprintf(&b, "- Files: %s\n", strings.Join(r.Files, ", "))
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "- Error: %s\n", e)
	}
	for _, d := range r.Decisions {
		fmt.Fprintf(&b, "- Decision: %s\n", d)
	}

	if b.Len() == len("## Recap\n\n") {
		b.WriteString("- Nothing notable extracted\n")
	}
	return b.String()
}

func sortedRoles(turns map[string]int) []string {
	roles := make([]string, 0, len(turns))
	for role := range turns {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package segment

import "regexp"

// redactedMark replaces secret-like substrings in processed lines.
const redactedMark = "[REDACTED]"

// Secret shapes: credential assignments, then long base64-ish runs, then
// long hex runs. Order matters: the assignment pattern must claim
// "token=..." before the run patterns eat the value alone.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:bearer|token|api[_-]?key|secret|passw(?:or)?d|authorization)\b[=:\s]+\S+`),
	regexp.MustCompile(`\b[A-Za-z0-9+/=_-]{48,}\b`),
	regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`),
}

// stackFramePatterns identify lines belonging to a stack trace.
var stackFramePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s+at\s+\S+`),
	regexp.MustCompile(`^\s+File "`),
	regexp.MustCompile(`^\s*[\w./$@-]+\.(?:go|java|py|rb|js|ts|rs|c|cpp):\d+`),
	regexp.MustCompile(`^\s+[\w.$/@*()-]+\([^)]*\)$`),
	regexp.MustCompile(`^goroutine \d+ \[`),
	regexp.MustCompile(`^\s+Caused by: `),
}

// redact replaces secret-like substrings with a fixed marker.
func redact(line string) string {
	for _, re := range secretPatterns {
		line = re.ReplaceAllString(line, redactedMark)
	}
	return line
}

func isStackFrame(line string) bool {
	for _, re := range stackFramePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

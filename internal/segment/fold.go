package segment

import "fmt"

// foldStackFrames collapses contiguous stack-frame runs of at least
// stackFoldMin lines into the first frame, a fold marker, and the last
// frame. Shorter runs pass through untouched.
func (s *Segmenter) foldStackFrames(lines []string) []string {
	var out []string

	i := 0
	for i < len(lines) {
		if !isStackFrame(lines[i]) {
			out = append(out, lines[i])
			i++
			continue
		}

		j := i
		for j < len(lines) && isStackFrame(lines[j]) {
			j++
		}

		run := lines[i:j]
		if len(run) < s.stackFoldMin {
			out = append(out, run...)
		} else {
			out = append(out, run[0])
			out = append(out, fmt.Sprintf("    ... %d stack frames folded ...", len(run)-2))
			out = append(out, run[len(run)-1])
		}
		i = j
	}

	return out
}

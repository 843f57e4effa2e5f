// Package models contains domain models for distill.
package models

// LogEvent is a bounded group of original log lines treated as one
// clustering and scoring unit. Events are immutable after segmentation
// except for Order, which the pipeline stamps before clustering.
type LogEvent struct {
	// RawLines are the original lines as read from the input.
	RawLines []string `json:"raw_lines"`

	// Lines are the processed lines: noise dropped, secrets redacted,
	// stack frames folded.
	Lines []string `json:"lines"`

	// Template mirrors Lines with volatile values replaced by named
	// placeholders. len(Template) == len(Lines) always.
	Template []string `json:"template"`

	// Placeholders maps a placeholder name to the distinct original
	// values it replaced, in first-seen order.
	Placeholders map[string][]string `json:"placeholders,omitempty"`

	// Signature is the coarse structural key: identifiers collapsed to X,
	// digit runs collapsed to N.
	Signature string `json:"signature"`

	// Category is the label of the matching category rule, or "Other".
	Category string `json:"category"`

	// Score is the summed importance contribution of all lines plus
	// dataset-diversity bonuses.
	Score float64 `json:"score"`

	// Order is the event's position in the original input.
	Order int `json:"order"`
}

// IsEmpty reports whether the event carries no informative lines.
func (e *LogEvent) IsEmpty() bool {
	return len(e.Lines) == 0
}

// AddPlaceholderValue records a captured value for a placeholder,
// deduplicating repeats.
func (e *LogEvent) AddPlaceholderValue(name, value string) {
	if e.Placeholders == nil {
		e.Placeholders = make(map[string][]string)
	}
	for _, v := range e.Placeholders[name] {
		if v == value {
			return
		}
	}
	e.Placeholders[name] = append(e.Placeholders[name], value)
}

// TemplateText joins the template lines into a single string for
// similarity comparison.
func (e *LogEvent) TemplateText() string {
	switch len(e.Template) {
	case 0:
		return ""
	case 1:
		return e.Template[0]
	}
	n := 0
	for _, l := range e.Template {
		n += len(l) + 1
	}
	buf := make([]byte, 0, n)
	for i, l := range e.Template {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, l...)
	}
	return string(buf)
}

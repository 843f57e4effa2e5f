// Package segment splits raw log text into bounded, scored, categorized
// events ready for clustering.
package segment

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/distill/internal/config"
	"github.com/thebtf/distill/internal/memo"
	"github.com/thebtf/distill/pkg/models"
)

// Structural markers that open a new event when one is already open.
// Blank lines never force a boundary.
var boundaryMarkers = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]`),
	regexp.MustCompile(`^\[?\d{2}:\d{2}:\d{2}[.,:\]\s]`),
	regexp.MustCompile(`^[\w./-]+\.\w+:\d+`),
	regexp.MustCompile(`^\[[\w .:/@-]+\]`),
	regexp.MustCompile(`^(?:ERROR|WARN(?:ING)?|INFO|DEBUG|TRACE|FATAL|PANIC)\b`),
	regexp.MustCompile(`^(?:GET|POST|PUT|DELETE|PATCH|HEAD|OPTIONS)\b`),
}

// placeholderRule is a compiled volatile-value matcher.
type placeholderRule struct {
	name string
	re   *regexp.Regexp
}

// categoryRule is a compiled category matcher; lower priority wins.
type categoryRule struct {
	name     string
	priority int
	re       *regexp.Regexp
}

// Segmenter consumes full text and produces an ordered event list.
// Construct one per pipeline run; it is not safe for concurrent use
// because of the shared score cache.
type Segmenter struct {
	noise        []*regexp.Regexp
	placeholders []placeholderRule
	categories   []categoryRule
	scorer       *scorer

	stackFoldMin  int
	maxEventLines int

	scoreCache *memo.Cache[uint64, float64]
}

// WithScoreCache memoizes event scores by content hash so semantically
// identical events reuse one computation.
func (s *Segmenter) WithScoreCache(c *memo.Cache[uint64, float64]) *Segmenter {
	s.scoreCache = c
	return s
}

// New compiles the segmenter's pattern sets. Invalid regexes are dropped
// with a warning; they never fail construction.
func New(cfg *config.Config) *Segmenter {
	s := &Segmenter{
		scorer:        newScorer(cfg.Score),
		stackFoldMin:  cfg.Segment.StackFoldMin,
		maxEventLines: cfg.Segment.MaxEventLines,
	}

	for _, src := range cfg.Segment.NoisePatterns {
		re, err := regexp.Compile(src)
		if err != nil {
			log.Warn().Err(err).Str("pattern", src).Msg("Dropping invalid noise pattern")
			continue
		}
		s.noise = append(s.noise, re)
	}

	for _, rule := range cfg.Segment.PlaceholderRules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			log.Warn().Err(err).Str("placeholder", rule.Name).Msg("Dropping invalid placeholder rule")
			continue
		}
		s.placeholders = append(s.placeholders, placeholderRule{name: rule.Name, re: re})
	}

	for _, rule := range cfg.Categories {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			log.Warn().Err(err).Str("category", rule.Name).Msg("Dropping invalid category rule")
			continue
		}
		s.categories = append(s.categories, categoryRule{name: rule.Name, priority: rule.Priority, re: re})
	}

	return s
}

// Segment splits text into events on structural boundaries, processes
// each event's lines, and discards events left with no informative
// content. Events are returned in input order with Order stamped.
func (s *Segmenter) Segment(text string) []*models.LogEvent {
	var events []*models.LogEvent
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		ev := s.build(current)
		current = nil
		if ev.IsEmpty() {
			return
		}
		ev.Order = len(events)
		events = append(events, ev)
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")

		if strings.TrimSpace(line) == "" {
			// Interior blanks stay with the open event.
			if len(current) > 0 {
				current = append(current, line)
			}
			continue
		}

		if len(current) > 0 && isBoundary(line) {
			flush()
		}
		current = append(current, line)

		if len(current) >= s.maxEventLines {
			flush()
		}
	}
	flush()

	return events
}

func isBoundary(line string) bool {
	for _, re := range boundaryMarkers {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// build processes one raw event: noise drop, redaction, stack folding,
// templating, signature, score, and category.
func (s *Segmenter) build(raw []string) *models.LogEvent {
	ev := &models.LogEvent{RawLines: append([]string(nil), raw...)}

	var processed []string
	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if s.isNoise(line) {
			continue
		}
		processed = append(processed, redact(line))
	}

	processed = s.foldStackFrames(processed)
	ev.Lines = processed

	ev.Template = make([]string, len(processed))
	for i, line := range processed {
		ev.Template[i] = s.applyPlaceholders(ev, line)
	}

	ev.Signature = structuralSignature(ev.Template)
	ev.Score = s.score(processed)
	ev.Category = s.categorize(processed)

	return ev
}

// score computes the event's importance, going through the content-hash
// cache when one is attached.
func (s *Segmenter) score(lines []string) float64 {
	if s.scoreCache == nil {
		return s.scorer.scoreEvent(lines)
	}
	key := memo.ContentHash(strings.Join(lines, "\n"))
	return s.scoreCache.Get(key, func() float64 {
		return s.scorer.scoreEvent(lines)
	})
}

func (s *Segmenter) isNoise(line string) bool {
	for _, re := range s.noise {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// applyPlaceholders substitutes volatile values in order, capturing each
// replaced original under its placeholder name.
func (s *Segmenter) applyPlaceholders(ev *models.LogEvent, line string) string {
	for _, rule := range s.placeholders {
		for _, m := range rule.re.FindAllString(line, -1) {
			ev.AddPlaceholderValue(rule.name, m)
		}
		line = rule.re.ReplaceAllString(line, "<"+rule.name+">")
	}
	return line
}

// categorize returns the lowest-priority matching category rule's name,
// or "Other".
func (s *Segmenter) categorize(lines []string) string {
	text := strings.Join(lines, "\n")
	best := ""
	bestPriority := 0
	for _, rule := range s.categories {
		if best != "" && rule.priority >= bestPriority {
			continue
		}
		if rule.re.MatchString(text) {
			best = rule.name
			bestPriority = rule.priority
		}
	}
	if best == "" {
		return "Other"
	}
	return best
}

var (
	identifierRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	digitsRe     = regexp.MustCompile(`[0-9]+`)
)

// structuralSignature coarsens template lines into an exact-match key:
// identifiers collapse to X, digit runs to N, structure is preserved.
func structuralSignature(template []string) string {
	joined := strings.Join(template, "\n")
	joined = identifierRe.ReplaceAllString(joined, "X")
	joined = digitsRe.ReplaceAllString(joined, "N")
	return joined
}

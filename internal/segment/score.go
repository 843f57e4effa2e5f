package segment

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/distill/internal/config"
)

var (
	statusRe  = regexp.MustCompile(`\b([1-5])[0-9]{2}\b`)
	latencyRe = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(ms|s)\b`)
	urlRe     = regexp.MustCompile(`https?://\S+|(?:^|\s)(/[\w%./-]{2,})`)
	numberRe  = regexp.MustCompile(`\b\d+\b`)
	wordRe    = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]{2,}`)
)

// messageWeight is a compiled message pattern and its contribution.
type messageWeight struct {
	re     *regexp.Regexp
	weight float64
}

// scorer computes per-event importance: summed line contributions plus
// dataset-diversity bonuses.
type scorer struct {
	cfg      config.ScoreConfig
	messages []messageWeight
	success  *regexp.Regexp
}

// newScorer compiles the score patterns. An invalid pattern is dropped;
// a non-finite weight is replaced with 1.0.
func newScorer(cfg config.ScoreConfig) *scorer {
	sc := &scorer{cfg: cfg}

	for _, mw := range cfg.MessagePatterns {
		re, err := regexp.Compile(mw.Pattern)
		if err != nil {
			log.Warn().Err(err).Str("pattern", mw.Pattern).Msg("Dropping invalid message score pattern")
			continue
		}
		weight := mw.Weight
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			log.Warn().Str("pattern", mw.Pattern).Msg("Replacing non-finite message weight with 1.0")
			weight = 1.0
		}
		sc.messages = append(sc.messages, messageWeight{re: re, weight: weight})
	}

	if cfg.SuccessPattern != "" {
		re, err := regexp.Compile(cfg.SuccessPattern)
		if err != nil {
			log.Warn().Err(err).Msg("Dropping invalid success pattern")
		} else {
			sc.success = re
		}
	}

	return sc
}

// scoreEvent sums line contributions, then adds diversity bonuses for
// the distinct URLs, numbers, and word tokens across the event.
func (s *scorer) scoreEvent(lines []string) float64 {
	var total float64
	urls := make(map[string]bool)
	numbers := make(map[string]bool)
	words := make(map[string]bool)

	for _, line := range lines {
		total += s.scoreLine(line)

		for _, m := range urlRe.FindAllString(line, -1) {
			urls[strings.TrimSpace(m)] = true
		}
		for _, m := range numberRe.FindAllString(line, -1) {
			numbers[m] = true
		}
		for _, m := range wordRe.FindAllString(line, -1) {
			words[strings.ToLower(m)] = true
		}
	}

	total += float64(len(urls)) * s.cfg.URLBonus
	total += float64(len(numbers)) * s.cfg.NumberBonus
	total += float64(len(words)) * s.cfg.TokenBonus
	return total
}

// scoreLine applies status, latency, message, and success contributions.
func (s *scorer) scoreLine(line string) float64 {
	var score float64

	if m := statusRe.FindStringSubmatch(line); m != nil {
		score += s.cfg.StatusWeights[m[1]+"xx"]
	}

	if m := latencyRe.FindStringSubmatch(line); m != nil {
		ms, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			if m[2] == "s" {
				ms *= 1000
			}
			for _, bucket := range s.cfg.LatencyBuckets {
				if ms >= bucket.MinMillis {
					score += bucket.Weight
					break
				}
			}
		}
	}

	for _, mw := range s.messages {
		if mw.re.MatchString(line) {
			score += mw.weight
		}
	}

	if s.success != nil && s.success.MatchString(line) {
		score += s.cfg.SuccessPenalty
	}

	return score
}

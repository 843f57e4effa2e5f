package cluster

import (
	"context"
	"math"

	"github.com/thebtf/distill/pkg/models"
	"github.com/thebtf/distill/pkg/similarity"
)

// flatStrategy matches each event against a bounded recent window of
// existing clusters in its own primary category. The window bound is a
// deliberate precision/performance trade-off: matching is order
// dependent, but candidate scanning stays O(window) per event.
type flatStrategy struct {
	eng *Engine

	// keys in cluster creation order; the tail is the recent window.
	keys []int
}

func newFlat(e *Engine) *flatStrategy {
	return &flatStrategy{eng: e}
}

func (s *flatStrategy) Name() string { return "flat-adaptive" }

func (s *flatStrategy) Initialize(ctx context.Context, events []*models.LogEvent) error {
	s.keys = make([]int, 0, 64)
	return nil
}

// FindOrCreateKey scans recent same-category clusters newest first. A
// cheap structural signature match accepts immediately; otherwise a
// candidate is acceptable when its edit distance clears the strict
// threshold or its weighted Jaccard clears the Jaccard floor, and its
// edit distance stays under the loose ceiling either way. The lowest
// edit distance wins, ties broken by higher Jaccard.
func (s *flatStrategy) FindOrCreateKey(ev *models.LogEvent) int {
	t := s.eng.thresholds

	bestKey := -1
	bestEdit := math.MaxFloat64
	bestJac := -1.0

	scanned := 0
	for i := len(s.keys) - 1; i >= 0 && scanned < s.eng.cfg.RecentWindow; i-- {
		key := s.keys[i]
		c := s.eng.byKey[key]
		scanned++

		if c.PrimaryCategory != ev.Category {
			continue
		}

		if s.eng.structuralMatch(ev.Signature, c.Signature) {
			return key
		}

		edit := similarity.NormalizedLevenshtein(ev.Signature, c.Signature)
		if edit >= t.Edit {
			continue
		}

		jac := similarity.WeightedJaccard(
			s.eng.tokens(ev.TemplateText()),
			s.eng.tokens(c.Seed().TemplateText()),
		)
		if edit > t.StrictEdit && jac < t.Jaccard {
			continue
		}

		if edit < bestEdit || (edit == bestEdit && jac > bestJac) {
			bestKey = key
			bestEdit = edit
			bestJac = jac
		}
	}

	if bestKey >= 0 {
		return bestKey
	}

	key := s.eng.newKey()
	s.keys = append(s.keys, key)
	return key
}

func (s *flatStrategy) UpdateMetadata(c *models.Cluster, ev *models.LogEvent) {}

func (s *flatStrategy) Cleanup() {
	s.keys = nil
}

package cluster

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/distill/internal/minhash"
	"github.com/thebtf/distill/pkg/models"
)

// hierarchicalStrategy assigns events in three decreasing-strictness
// passes over an LSH index. All assignment happens in Initialize; the
// driver's FindOrCreateKey calls then replay the precomputed mapping,
// which keeps the final clustering independent of worker-pool reply
// order. Clusters formed by a stricter pass are never reopened later.
type hierarchicalStrategy struct {
	eng *Engine

	assign map[int]int // event Order -> cluster key
	levels map[int]int // cluster key -> pass number (1-based)
}

func newHierarchical(e *Engine) *hierarchicalStrategy {
	return &hierarchicalStrategy{eng: e}
}

func (s *hierarchicalStrategy) Name() string { return "hierarchical" }

// passThresholds derives the three pass floors from the run's Jaccard
// threshold, strictest first.
func passThresholds(jaccard float64) [3]float64 {
	return [3]float64{
		clamp(jaccard+0.25, 0.05, 0.95),
		clamp(jaccard, 0.05, 0.95),
		clamp(jaccard-0.15, 0.05, 0.95),
	}
}

func (s *hierarchicalStrategy) Initialize(ctx context.Context, events []*models.LogEvent) error {
	s.assign = make(map[int]int, len(events))
	s.levels = make(map[int]int)

	cfg := s.eng.cfg
	idx, err := minhash.NewIndex(cfg.LSH.Bands, cfg.LSH.Rows)
	if err != nil {
		return err
	}

	// Reuse pipeline-computed signatures; fill gaps synchronously.
	gen := minhash.NewGenerator(cfg.MinHashFuncs, cfg.Seed)
	sigs := make(map[int]minhash.Signature, len(events))
	for _, ev := range events {
		if sig, ok := s.eng.signatures[ev.Order]; ok && len(sig) == idx.SignatureLen() {
			sigs[ev.Order] = sig
		} else {
			sigs[ev.Order] = gen.Sum(s.eng.tokenTexts(ev.TemplateText()))
		}
		if err := idx.Add(ev.Order, sigs[ev.Order]); err != nil {
			return err
		}
	}

	unassigned := make(map[int]bool, len(events))
	for _, ev := range events {
		unassigned[ev.Order] = true
	}

	thresholds := passThresholds(s.eng.thresholds.Jaccard)
	for pass, floor := range thresholds {
		lastPass := pass == len(thresholds)-1

		for i, ev := range events {
			if i%cfg.BatchSize == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if !unassigned[ev.Order] {
				continue
			}

			candidates, err := idx.Query(sigs[ev.Order], floor)
			if err != nil {
				return err
			}

			var accepted []int
			for _, cand := range candidates {
				if cand.ID != ev.Order && unassigned[cand.ID] {
					accepted = append(accepted, cand.ID)
				}
			}

			// A lone seed waits for a looser pass rather than locking
			// itself into a singleton early.
			if len(accepted) == 0 && !lastPass {
				continue
			}

			key := s.eng.newKey()
			s.levels[key] = pass + 1
			s.assign[ev.Order] = key
			delete(unassigned, ev.Order)
			for _, id := range accepted {
				s.assign[id] = key
				delete(unassigned, id)
			}
		}

		log.Debug().
			Int("pass", pass+1).
			Float64("threshold", floor).
			Int("unassigned", len(unassigned)).
			Msg("Hierarchical pass complete")
	}

	return nil
}

func (s *hierarchicalStrategy) FindOrCreateKey(ev *models.LogEvent) int {
	return s.assign[ev.Order]
}

func (s *hierarchicalStrategy) UpdateMetadata(c *models.Cluster, ev *models.LogEvent) {
	if key, ok := s.assign[ev.Order]; ok {
		c.Level = s.levels[key]
	}
}

func (s *hierarchicalStrategy) Cleanup() {
	s.assign = nil
	s.levels = nil
}

package cluster

import "github.com/thebtf/distill/internal/config"

// AdaptiveThresholds are the similarity cutoffs for one run, derived once
// from dataset size and average signature length and read-only after
// computation. Edit thresholds are normalized distances (lower is
// stricter to pass); Jaccard is a similarity floor.
type AdaptiveThresholds struct {
	// Edit is the loose ceiling: candidates at or above it never match.
	Edit float64

	// StrictEdit accepts a candidate on edit distance alone.
	StrictEdit float64

	// Jaccard is the weighted-Jaccard acceptance floor.
	Jaccard float64
}

// ComputeThresholds derives the run thresholds. Small datasets and short
// signatures loosen the cutoffs; large datasets and long signatures
// tighten them.
func ComputeThresholds(cfg config.ThresholdConfig, datasetSize int, avgSigLen float64) AdaptiveThresholds {
	sizeFactor := 1.0
	switch {
	case datasetSize < cfg.SmallDataset:
		sizeFactor = cfg.SmallSizeFactor
	case datasetSize > cfg.LargeDataset:
		sizeFactor = cfg.LargeSizeFactor
	}

	lenFactor := 1.0
	switch {
	case avgSigLen < cfg.ShortSignature:
		lenFactor = cfg.ShortLenFactor
	case avgSigLen > cfg.LongSignature:
		lenFactor = cfg.LongLenFactor
	}

	edit := clamp(cfg.BaseEdit*sizeFactor*lenFactor, 0.15, 0.75)
	jaccard := clamp(cfg.BaseJaccard/(sizeFactor*lenFactor), 0.2, 0.85)

	return AdaptiveThresholds{
		Edit:       edit,
		StrictEdit: edit * cfg.StrictRatio,
		Jaccard:    jaccard,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

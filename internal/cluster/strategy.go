package cluster

import (
	"context"

	"github.com/thebtf/distill/pkg/models"
)

// Strategy decides which cluster an event belongs to. Implementations
// share one contract and are selected per clustering call; a strategy
// instance serves exactly one run.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Initialize prepares per-run state before the batch loop starts.
	// The full event list is available for precomputation.
	Initialize(ctx context.Context, events []*models.LogEvent) error

	// FindOrCreateKey returns the cluster key for an event. A key not
	// seen before makes the event the seed of a new cluster.
	FindOrCreateKey(ev *models.LogEvent) int

	// UpdateMetadata runs after an event lands in its cluster, for both
	// the seed and later joiners.
	UpdateMetadata(c *models.Cluster, ev *models.LogEvent)

	// Cleanup releases per-run state after the final batch.
	Cleanup()
}

// Package pipeline orchestrates one distillation run: preflight limits,
// segmentation, optional MinHash offload to the worker pool, clustering,
// and an invocation-wide timeout.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/distill/internal/cluster"
	"github.com/thebtf/distill/internal/config"
	"github.com/thebtf/distill/internal/memo"
	"github.com/thebtf/distill/internal/minhash"
	"github.com/thebtf/distill/internal/pool"
	"github.com/thebtf/distill/internal/segment"
	"github.com/thebtf/distill/internal/tokenize"
	"github.com/thebtf/distill/pkg/models"
)

// Strategy names accepted in Options.
const (
	StrategyFlat         = "flat"
	StrategyHierarchical = "hierarchical"
)

// Options tune a single invocation. Zero values defer to the config.
type Options struct {
	// BatchSize overrides the configured clustering batch size.
	BatchSize int

	// Strategy is "flat" or "hierarchical"; empty uses the config.
	Strategy string
}

// Result is one completed distillation run.
type Result struct {
	RunID      uuid.UUID
	Clusters   []*models.Cluster
	EventCount int
	InputBytes int
	Strategy   string
	Duration   time.Duration
}

// sigItem and sigBatch are the worker payload for MinHash offload.
type sigItem struct {
	order  int
	tokens []string
}

type sigBatch struct {
	items []sigItem
}

// Pipeline runs distillation. One Pipeline may serve many sequential or
// concurrent invocations; each invocation owns its caches, engine, and
// LSH index. The worker pool is the only shared component.
type Pipeline struct {
	cfg     *config.Config
	gen     *minhash.Generator
	workers *pool.Pool
}

// New creates a Pipeline with a worker pool of poolSize workers that
// computes MinHash signatures off the calling goroutine for
// hierarchical runs. poolSize 0 sizes the pool to the hardware
// concurrency; a negative poolSize disables the pool entirely.
func New(cfg *config.Config, poolSize int) *Pipeline {
	p := &Pipeline{
		cfg: cfg,
		gen: minhash.NewGenerator(cfg.MinHashFuncs, cfg.Seed),
	}

	if poolSize >= 0 {
		p.workers = pool.New(poolSize, map[pool.TaskType]pool.Handler{
			pool.TaskMinHash: p.minHashHandler,
		})
	}
	return p
}

// Close shuts the worker pool down, if any.
func (p *Pipeline) Close() {
	if p.workers != nil {
		p.workers.Close()
	}
}

// minHashHandler computes signatures for one batch on a pool worker.
func (p *Pipeline) minHashHandler(payload any) (any, error) {
	batch, ok := payload.(sigBatch)
	if !ok {
		return nil, fmt.Errorf("minhash handler: unexpected payload %T", payload)
	}
	out := make(map[int]minhash.Signature, len(batch.items))
	for _, item := range batch.items {
		out[item.order] = p.gen.Sum(item.tokens)
	}
	return out, nil
}

// Distill runs the full pipeline on text. The configured timeout races
// the whole invocation; on expiry the call fails with ErrTimeout and no
// partial results.
func (p *Pipeline) Distill(ctx context.Context, text string, opts Options) (*Result, error) {
	runID := uuid.New()
	started := time.Now()

	if len(text) > p.cfg.MaxInputBytes {
		return nil, newError("preflight", runID, ErrInputTooLarge).
			WithContext("bytes", len(text)).
			WithContext("limit", p.cfg.MaxInputBytes)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := p.run(ctx, runID, text, opts)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		out.res.Duration = time.Since(started)
		return out.res, nil
	case <-ctx.Done():
		return nil, newError("run", runID, ErrTimeout).
			WithContext("timeout", p.cfg.Timeout.String())
	}
}

// run executes segmentation and clustering on the calling goroutine.
func (p *Pipeline) run(ctx context.Context, runID uuid.UUID, text string, opts Options) (*Result, error) {
	cfg := p.effectiveConfig(opts)

	seg := segment.New(cfg).
		WithScoreCache(memo.New[uint64, float64](cfg.Cache.ScoreSize))
	events := seg.Segment(text)

	if len(events) > cfg.MaxEvents {
		return nil, newError("segment", runID, ErrTooManyEvents).
			WithContext("events", len(events)).
			WithContext("limit", cfg.MaxEvents)
	}

	log.Debug().
		Str("run", runID.String()).
		Int("events", len(events)).
		Bool("hierarchical", cfg.Hierarchical).
		Msg("Segmentation complete")

	eng := cluster.New(cfg)
	if cfg.Hierarchical && p.workers != nil {
		sigs, err := p.offloadSignatures(ctx, events, cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		eng.SetSignatures(sigs)
	}

	clusters, err := eng.Run(ctx, events)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError("cluster", runID, ErrTimeout)
		}
		return nil, newError("cluster", runID, err)
	}

	strategy := StrategyFlat
	if cfg.Hierarchical {
		strategy = StrategyHierarchical
	}

	return &Result{
		RunID:      runID,
		Clusters:   clusters,
		EventCount: len(events),
		InputBytes: len(text),
		Strategy:   strategy,
	}, nil
}

// effectiveConfig layers per-call options over the base config.
func (p *Pipeline) effectiveConfig(opts Options) *config.Config {
	cfg := *p.cfg
	if opts.BatchSize > 0 {
		cfg.BatchSize = opts.BatchSize
	}
	switch opts.Strategy {
	case StrategyFlat:
		cfg.Hierarchical = false
	case StrategyHierarchical:
		cfg.Hierarchical = true
	}
	return &cfg
}

// offloadSignatures fans MinHash batches out to the worker pool and
// reassembles replies by event order, so out-of-order completion cannot
// influence the final clustering. A failed batch is logged and skipped;
// the engine recomputes missing signatures synchronously.
func (p *Pipeline) offloadSignatures(ctx context.Context, events []*models.LogEvent, batchSize int) (map[int]minhash.Signature, error) {
	tok := tokenize.New()

	sigs := make(map[int]minhash.Signature, len(events))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(events); start += batchSize {
		end := start + batchSize
		if end > len(events) {
			end = len(events)
		}

		batch := sigBatch{items: make([]sigItem, 0, end-start)}
		for _, ev := range events[start:end] {
			toks := tok.Tokenize(ev.TemplateText())
			texts := make([]string, len(toks))
			for i, t := range toks {
				texts[i] = t.Text
			}
			batch.items = append(batch.items, sigItem{order: ev.Order, tokens: texts})
		}

		future := p.workers.Run(pool.TaskMinHash, batch)
		g.Go(func() error {
			data, err := future.Wait(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// One failed batch degrades to synchronous computation
				// inside the engine; the run continues.
				log.Warn().Err(err).Msg("MinHash batch failed, will recompute synchronously")
				return nil
			}

			batchSigs, ok := data.(map[int]minhash.Signature)
			if !ok {
				log.Warn().Msgf("MinHash batch returned unexpected type %T", data)
				return nil
			}

			mu.Lock()
			for order, sig := range batchSigs {
				sigs[order] = sig
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sigs, nil
}

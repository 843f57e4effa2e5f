// Package cluster implements the strategy-based grouping engine: a
// shared batch driver over a flat adaptive-threshold strategy or a
// multi-pass hierarchical strategy backed by an LSH index.
package cluster

import (
	"context"
	"regexp"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/distill/internal/config"
	"github.com/thebtf/distill/internal/memo"
	"github.com/thebtf/distill/internal/minhash"
	"github.com/thebtf/distill/internal/tokenize"
	"github.com/thebtf/distill/pkg/models"
	"github.com/thebtf/distill/pkg/similarity"
)

// Engine drives one clustering invocation. It owns its caches and its
// strategy and must not be shared across concurrent invocations.
type Engine struct {
	cfg        *config.Config
	tokenizer  *tokenize.Tokenizer
	thresholds AdaptiveThresholds
	strategy   Strategy

	tokenCache *memo.Cache[uint64, []similarity.Token]
	matchCache *memo.Cache[string, bool]

	// signatures are precomputed MinHash signatures keyed by event
	// Order, supplied by the pipeline when the worker pool is enabled.
	signatures map[int]minhash.Signature

	clusters []*models.Cluster
	byKey    map[int]*models.Cluster
	nextKey  int
}

// New creates an Engine for one run. The strategy is selected by
// cfg.Hierarchical.
func New(cfg *config.Config) *Engine {
	e := &Engine{
		cfg:        cfg,
		tokenizer:  tokenize.New(),
		tokenCache: memo.New[uint64, []similarity.Token](cfg.Cache.TokenSize),
		matchCache: memo.New[string, bool](cfg.Cache.MatchSize),
		byKey:      make(map[int]*models.Cluster),
	}

	if cfg.Hierarchical {
		e.strategy = newHierarchical(e)
	} else {
		e.strategy = newFlat(e)
	}
	return e
}

// SetSignatures hands precomputed MinHash signatures to the engine,
// keyed by event Order. Only the hierarchical strategy consumes them;
// without them it computes signatures synchronously.
func (e *Engine) SetSignatures(sigs map[int]minhash.Signature) {
	e.signatures = sigs
}

// Run groups events and returns clusters sorted by descending size,
// ties broken by formation order. The batch loop checks ctx between
// batches so a timed-out invocation stops without partial results.
func (e *Engine) Run(ctx context.Context, events []*models.LogEvent) ([]*models.Cluster, error) {
	e.thresholds = ComputeThresholds(e.cfg.Thresholds, len(events), averageSignatureLength(events))

	log.Debug().
		Str("strategy", e.strategy.Name()).
		Int("events", len(events)).
		Float64("edit", e.thresholds.Edit).
		Float64("strictEdit", e.thresholds.StrictEdit).
		Float64("jaccard", e.thresholds.Jaccard).
		Msg("Clustering run starting")

	if err := e.strategy.Initialize(ctx, events); err != nil {
		return nil, err
	}
	defer e.strategy.Cleanup()

	batch := e.cfg.BatchSize
	for start := 0; start < len(events); start += batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + batch
		if end > len(events) {
			end = len(events)
		}

		for _, ev := range events[start:end] {
			key := e.strategy.FindOrCreateKey(ev)
			c, ok := e.byKey[key]
			if !ok {
				c = models.NewCluster(ev)
				e.byKey[key] = c
				e.clusters = append(e.clusters, c)
			} else {
				c.Add(ev)
			}
			e.strategy.UpdateMetadata(c, ev)
		}
	}

	out := make([]*models.Cluster, len(e.clusters))
	copy(out, e.clusters)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Size() > out[j].Size()
	})
	return out, nil
}

// newKey allocates the next cluster key.
func (e *Engine) newKey() int {
	k := e.nextKey
	e.nextKey++
	return k
}

// tokens memoizes tokenization of an event's template text.
func (e *Engine) tokens(text string) []similarity.Token {
	return e.tokenCache.Get(memo.ContentHash(text), func() []similarity.Token {
		return e.tokenizer.Tokenize(text)
	})
}

// tokenTexts flattens a token stream for MinHash consumption.
func (e *Engine) tokenTexts(text string) []string {
	toks := e.tokens(text)
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}

var signatureCollapseRe = regexp.MustCompile(`X+|N+|\s+`)

// structuralMatch memoizes the cheap pairwise check: two signatures
// match structurally when they are equal after collapsing repeated
// identifier/digit markers and whitespace runs.
func (e *Engine) structuralMatch(a, b string) bool {
	if a == b {
		return true
	}
	return e.matchCache.Get(memo.PairKey(a, b), func() bool {
		return collapseSignature(a) == collapseSignature(b)
	})
}

func collapseSignature(sig string) string {
	return signatureCollapseRe.ReplaceAllStringFunc(sig, func(run string) string {
		switch run[0] {
		case 'X':
			return "X"
		case 'N':
			return "N"
		default:
			return " "
		}
	})
}

func averageSignatureLength(events []*models.LogEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	total := 0
	for _, ev := range events {
		total += len(ev.Signature)
	}
	return float64(total) / float64(len(events))
}

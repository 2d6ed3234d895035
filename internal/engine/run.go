package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raphaelgruber/memdedup-go/internal/cluster"
	"github.com/raphaelgruber/memdedup-go/internal/detector"
	"github.com/raphaelgruber/memdedup-go/internal/fusion"
	"github.com/raphaelgruber/memdedup-go/internal/metrics"
	"github.com/raphaelgruber/memdedup-go/internal/models"
	"github.com/raphaelgruber/memdedup-go/internal/validate"
)

// RunOptions configures one deduplication run.
type RunOptions struct {
	// Config is the per-run tuning. Validated before any work happens.
	Config models.DeduplicationConfig
	// CandidateIDs restricts detection to pairs touching these memories.
	// Empty means a full run over all active memories. Incremental runs
	// score candidates against everything but never re-score the existing
	// index against itself.
	CandidateIDs []string
	// Tags optionally narrows the loaded memory set.
	Tags []string
	// WarmStart seeds the score cache from persisted scores before the run
	// and persists the cache afterwards. Best effort on both sides.
	WarmStart bool
	// OnProgress, when set, receives scoring progress. Called from worker
	// goroutines; the callback must be safe for concurrent use.
	OnProgress func(done, total int)
}

// RunResult summarizes a deduplication run.
type RunResult struct {
	MemoriesScanned int                     `json:"memories_scanned"`
	PairsConsidered int                     `json:"pairs_considered"`
	CacheHits       int                     `json:"cache_hits"`
	EligibleEdges   int                     `json:"eligible_edges"`
	Groups          []models.DuplicateGroup `json:"groups"`
	Rejections      []validate.Rejection    `json:"rejections,omitempty"`
	PairErrors      []string                `json:"pair_errors,omitempty"`
	Duration        time.Duration           `json:"duration"`
}

// pair is one unit of detection work.
type pair struct {
	a, b *models.Memory
}

// RunDeduplication executes the full pipeline: score pairs, fuse, cluster,
// validate, persist accepted groups as pending. Cancellation is honored
// between phases and while persisting; a cancelled run never caches partial
// scores and never writes partial batches beyond the groups already saved.
func (e *Engine) RunDeduplication(ctx context.Context, opts RunOptions) (*RunResult, error) {
	start := time.Now()

	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	memories, err := e.store.ListActiveMemories(ctx, models.MemoryFilter{Tags: opts.Tags})
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}

	if opts.WarmStart {
		if scores, err := e.store.LoadScores(ctx); err != nil {
			slog.Warn("score warm-start failed", "error", err)
		} else {
			e.cache.Warm(scores)
			slog.Debug("score cache warmed", "scores", len(scores))
		}
	}

	pairs := buildPairs(memories, opts.CandidateIDs)
	slog.Info("deduplication run starting",
		"memories", len(memories),
		"pairs", len(pairs),
		"candidates", len(opts.CandidateIDs),
		"workers", e.workers)

	result := &RunResult{
		MemoriesScanned: len(memories),
		PairsConsidered: len(pairs),
	}

	edges, cacheHits, pairErrors := e.scorePairs(ctx, opts, pairs)
	result.CacheHits = cacheHits
	result.PairErrors = pairErrors
	result.EligibleEdges = len(edges)

	if err := ctx.Err(); err != nil {
		return result, err
	}

	clusterStart := time.Now()
	index := make(map[string]*models.Memory, len(memories))
	for _, m := range memories {
		index[m.ID] = m
	}
	groups := cluster.Cluster(index, edges, opts.Config.MaxGroupSize)
	e.metrics.RecordTiming(metrics.OpCluster, time.Since(clusterStart))

	if err := ctx.Err(); err != nil {
		return result, err
	}

	validated := validate.Batch(groups, opts.Config)
	result.Rejections = validated.Rejection

	for _, group := range validated.Accepted {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		g := group
		if err := e.store.SaveDuplicateGroup(ctx, &g); err != nil {
			return result, fmt.Errorf("save group %s: %w", g.ID, err)
		}
		result.Groups = append(result.Groups, g)
	}

	if opts.WarmStart {
		if err := e.store.SaveScores(ctx, e.cache.Snapshot()); err != nil {
			slog.Warn("score persistence failed", "error", err)
		}
	}

	result.Duration = time.Since(start)
	slog.Info("deduplication run complete",
		"groups", len(result.Groups),
		"rejections", len(result.Rejections),
		"eligible_edges", result.EligibleEdges,
		"pair_errors", len(result.PairErrors),
		"duration", result.Duration)
	return result, nil
}

// scorePairs runs the detection worker pool and fuses per-pair scores into
// eligible clustering edges.
func (e *Engine) scorePairs(ctx context.Context, opts RunOptions, pairs []pair) ([]cluster.Edge, int, []string) {
	var (
		scored    atomic.Int32
		cacheHits atomic.Int32

		edgesMu sync.Mutex
		edges   []cluster.Edge

		errorsMu   sync.Mutex
		pairErrors []string
	)

	workChan := make(chan pair, len(pairs))
	var wg sync.WaitGroup

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range workChan {
				if ctx.Err() != nil {
					return
				}

				edge, hits, errs := e.scorePair(ctx, opts.Config, p)
				cacheHits.Add(int32(hits))
				if len(errs) > 0 {
					errorsMu.Lock()
					pairErrors = append(pairErrors, errs...)
					errorsMu.Unlock()
				}
				if edge != nil {
					edgesMu.Lock()
					edges = append(edges, *edge)
					edgesMu.Unlock()
				}

				done := int(scored.Add(1))
				if opts.OnProgress != nil {
					opts.OnProgress(done, len(pairs))
				}
			}
		}()
	}

	for _, p := range pairs {
		workChan <- p
	}
	close(workChan)
	wg.Wait()

	return edges, int(cacheHits.Load()), pairErrors
}

// scorePair runs every weighted detector for one pair through the cache and
// fuses the results. Returns nil when the pair is not an eligible edge.
func (e *Engine) scorePair(ctx context.Context, cfg models.DeduplicationConfig, p pair) (*cluster.Edge, int, []string) {
	scores := make(map[models.Method]float64, len(e.detectors))
	var (
		cacheHits int
		errs      []string
	)

	for _, d := range e.detectors {
		method := d.Method()
		if cfg.MethodWeights[method] <= 0 {
			continue
		}

		detectStart := time.Now()
		score, hit, err := e.cache.GetOrCompute(method, p.a, p.b, func() (models.SimilarityScore, error) {
			// A cancelled computation must never land in the cache.
			if err := ctx.Err(); err != nil {
				return models.SimilarityScore{}, err
			}
			return d.Score(p.a, p.b)
		})
		e.metrics.RecordTiming(metrics.OpDetect(string(method)), time.Since(detectStart))

		if err != nil {
			if detector.Abstains(err) {
				e.metrics.RecordAbstention()
			} else if ctx.Err() == nil {
				e.metrics.RecordPairError()
				errs = append(errs, fmt.Sprintf("%s/%s %s: %v", p.a.ID, p.b.ID, method, err))
			}
			continue
		}
		if hit {
			cacheHits++
		}
		e.metrics.RecordPairScored(hit)
		scores[method] = score.Score
	}

	fuseStart := time.Now()
	fused, ok := fusion.Fuse(cfg.MethodWeights, scores)
	e.metrics.RecordTiming(metrics.OpFuse, time.Since(fuseStart))
	if !ok || !fusion.Eligible(fused, cfg.SimilarityThreshold) {
		return nil, cacheHits, errs
	}

	a, b := models.PairKey(p.a.ID, p.b.ID)
	return &cluster.Edge{
		A:          a,
		B:          b,
		Confidence: fused.Confidence,
		Methods:    fused.Contributing,
		Exact:      fused.ExactMatch,
	}, cacheHits, errs
}

// buildPairs generates the unordered pairs to score. With candidates set,
// only pairs touching at least one candidate are generated, so incremental
// runs cost O(new x existing) instead of O(n^2).
func buildPairs(memories []*models.Memory, candidateIDs []string) []pair {
	ordered := make([]*models.Memory, len(memories))
	copy(ordered, memories)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	isCandidate := func(*models.Memory) bool { return true }
	if len(candidateIDs) > 0 {
		set := make(map[string]bool, len(candidateIDs))
		for _, id := range candidateIDs {
			set[id] = true
		}
		isCandidate = func(m *models.Memory) bool { return set[m.ID] }
	}

	var pairs []pair
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if isCandidate(ordered[i]) || isCandidate(ordered[j]) {
				pairs = append(pairs, pair{a: ordered[i], b: ordered[j]})
			}
		}
	}
	return pairs
}

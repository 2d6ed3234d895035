// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// PairCounters tracks how the detection phase spent its pairs.
type PairCounters struct {
	PairsScored int64 `json:"pairs_scored"`
	CacheHits   int64 `json:"cache_hits"`
	Abstentions int64 `json:"abstentions"`
	Errors      int64 `json:"errors"`
}

// Snapshot represents the full engine statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64                       `json:"uptime_seconds"`
	Pairs         PairCounters                  `json:"pairs"`
	Operations    map[string]*OperationSnapshot `json:"operations"`
}

// Operation names for the collector.
const (
	OpDetectExact    = "detect_exact"
	OpDetectSemantic = "detect_semantic"
	OpDetectFuzzy    = "detect_fuzzy"
	OpFuse           = "fuse"
	OpCluster        = "cluster"
	OpConsolidate    = "consolidate"
	OpEmbedding      = "embedding"
	OpDBQuery        = "db_query"
)

// OpDetect returns the detect operation name for a method string.
func OpDetect(method string) string {
	return "detect_" + method
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
	pairs     PairCounters
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordPairScored counts one scored pair, noting whether the score came
// from the cache.
func (c *Collector) RecordPairScored(cacheHit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs.PairsScored++
	if cacheHit {
		c.pairs.CacheHits++
	}
}

// RecordAbstention counts a detector that declined to score a pair.
func (c *Collector) RecordAbstention() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs.Abstentions++
}

// RecordPairError counts a non-abstention detector failure.
func (c *Collector) RecordPairError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs.Errors++
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	return &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Pairs:         c.pairs,
		Operations:    make(map[string]*OperationSnapshot, len(c.ops)),
	}
	for op, m := range c.ops {
		if s := snapshotOp(m); s != nil {
			snap.Operations[op] = s
		}
	}
	return snap
}

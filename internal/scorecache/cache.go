// Package scorecache memoizes pairwise similarity scores across incremental
// deduplication runs. The cache is the only shared mutable state in the
// detection phase, so it is sharded: readers and writers of different keys
// never contend on the same lock.
package scorecache

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

const shardCount = 32

// key addresses one cached score: method plus the unordered memory pair.
type key struct {
	method models.Method
	a, b   string
}

func newKey(method models.Method, idA, idB string) key {
	a, b := models.PairKey(idA, idB)
	return key{method: method, a: a, b: b}
}

func (k key) shard() uint32 {
	h := fnv.New32a()
	h.Write([]byte(k.method))
	h.Write([]byte{0})
	h.Write([]byte(k.a))
	h.Write([]byte{0})
	h.Write([]byte(k.b))
	return h.Sum32() % shardCount
}

type shard struct {
	mu       sync.RWMutex
	entries  map[key]models.SimilarityScore
	inflight map[key]chan struct{}
}

// Cache is a concurrency-safe pairwise score cache with a staleness rule:
// a score computed before either memory's last update is invalid.
// Eviction policy is a caller concern; the cache itself never evicts.
type Cache struct {
	shards [shardCount]*shard
}

// New creates an empty cache.
func New() *Cache {
	c := &Cache{}
	for i := range c.shards {
		c.shards[i] = &shard{
			entries:  make(map[key]models.SimilarityScore),
			inflight: make(map[key]chan struct{}),
		}
	}
	return c
}

// Get returns the cached score for (method, pair) if present and not stale
// relative to the given memory update times.
func (c *Cache) Get(method models.Method, a, b *models.Memory) (models.SimilarityScore, bool) {
	k := newKey(method, a.ID, b.ID)
	s := c.shards[k.shard()]

	s.mu.RLock()
	entry, ok := s.entries[k]
	s.mu.RUnlock()

	if !ok || stale(entry, a, b) {
		return models.SimilarityScore{}, false
	}
	return entry, true
}

// Put stores a fully computed score. Idempotent: storing the same key again
// overwrites the previous entry atomically.
func (c *Cache) Put(score models.SimilarityScore) {
	k := newKey(score.Method, score.MemoryA, score.MemoryB)
	s := c.shards[k.shard()]

	s.mu.Lock()
	s.entries[k] = score
	s.mu.Unlock()
}

// GetOrCompute returns the cached score or computes and caches a fresh one.
// Concurrent callers for the same key are collapsed best-effort: one caller
// computes while the others wait, then re-read. This is an efficiency
// measure only; a duplicated computation is harmless.
//
// compute errors are returned without caching anything, so a cancelled or
// failed computation can never masquerade as an authoritative score.
func (c *Cache) GetOrCompute(
	method models.Method,
	a, b *models.Memory,
	compute func() (models.SimilarityScore, error),
) (models.SimilarityScore, bool, error) {
	if score, ok := c.Get(method, a, b); ok {
		return score, true, nil
	}

	k := newKey(method, a.ID, b.ID)
	s := c.shards[k.shard()]

	for {
		s.mu.Lock()
		if entry, ok := s.entries[k]; ok && !stale(entry, a, b) {
			s.mu.Unlock()
			return entry, true, nil
		}
		done := s.inflight[k]
		if done == nil {
			done = make(chan struct{})
			s.inflight[k] = done
			s.mu.Unlock()
			break
		}
		s.mu.Unlock()

		// Another worker is computing this key; wait and re-check.
		<-done

		s.mu.RLock()
		entry, ok := s.entries[k]
		s.mu.RUnlock()
		if ok && !stale(entry, a, b) {
			return entry, true, nil
		}
		// The leader failed or produced a stale entry; take over.
	}

	score, err := compute()

	s.mu.Lock()
	if err == nil {
		s.entries[k] = score
	}
	if done, ok := s.inflight[k]; ok {
		close(done)
		delete(s.inflight, k)
	}
	s.mu.Unlock()

	if err != nil {
		return models.SimilarityScore{}, false, err
	}
	return score, false, nil
}

// Warm seeds the cache with previously persisted scores. Stale entries are
// filtered later at read time, so Warm can load unconditionally.
func (c *Cache) Warm(scores []models.SimilarityScore) {
	for _, score := range scores {
		c.Put(score)
	}
}

// Snapshot returns a copy of every cached score, for persistence.
func (c *Cache) Snapshot() []models.SimilarityScore {
	var out []models.SimilarityScore
	for _, s := range c.shards {
		s.mu.RLock()
		for _, entry := range s.entries {
			out = append(out, entry)
		}
		s.mu.RUnlock()
	}
	return out
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// stale reports whether the entry predates either memory's last edit.
func stale(entry models.SimilarityScore, a, b *models.Memory) bool {
	return entry.ComputedAt.Before(latest(a.UpdatedAt, b.UpdatedAt))
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

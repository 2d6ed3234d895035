package models

import "time"

// Method identifies one similarity detection method. The set is closed:
// adding a method means adding a detector variant, not plugin loading.
type Method string

const (
	MethodExact    Method = "exact"
	MethodSemantic Method = "semantic"
	MethodFuzzy    Method = "fuzzy"
)

// Methods lists all known detection methods in a fixed order.
func Methods() []Method {
	return []Method{MethodExact, MethodSemantic, MethodFuzzy}
}

// Valid reports whether m names a known detection method.
func (m Method) Valid() bool {
	switch m {
	case MethodExact, MethodSemantic, MethodFuzzy:
		return true
	}
	return false
}

// SimilarityScore is the result of one detector on one pair of memories.
// Value type: recomputation creates a new entry, existing entries are never
// mutated in place.
type SimilarityScore struct {
	MemoryA    string    `json:"memory_a"`
	MemoryB    string    `json:"memory_b"`
	Method     Method    `json:"method"`
	Score      float64   `json:"score"`
	ComputedAt time.Time `json:"computed_at"`
}

// PairKey returns the unordered pair key (smaller id first) so that
// score(a,b) and score(b,a) address the same cache entry.
func PairKey(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

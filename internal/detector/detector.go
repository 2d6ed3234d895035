// Package detector provides the similarity detection methods used for
// duplicate discovery: exact (content hash), semantic (embedding cosine)
// and fuzzy (token overlap blended with edit distance).
package detector

import (
	"fmt"
	"time"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

// ErrorKind classifies detector failures.
type ErrorKind string

const (
	// KindMissingSignal means a required input (e.g. an embedding) is absent.
	// Fusion treats this as abstention, never as a zero score.
	KindMissingSignal ErrorKind = "missing_signal"

	// KindEmptyContent means a memory normalizes to empty content, so the
	// method has nothing to compare.
	KindEmptyContent ErrorKind = "empty_content"
)

// Error is a per-pair detector failure. It removes the method from fusion
// for that pair only and never aborts the batch.
type Error struct {
	Method models.Method
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s detector: %s: %s", e.Method, e.Kind, e.Detail)
}

// Abstains reports whether err is a detector abstention (any *Error).
func Abstains(err error) bool {
	_, ok := err.(*Error)
	return ok
}

// Detector computes a similarity score in [0,1] for a pair of memories.
// Implementations are stateless apart from internal normalization caches
// and are safe for concurrent use.
type Detector interface {
	Method() models.Method
	Score(a, b *models.Memory) (models.SimilarityScore, error)
}

// newScore builds a SimilarityScore with the pair in canonical order.
func newScore(method models.Method, a, b *models.Memory, score float64) models.SimilarityScore {
	idA, idB := models.PairKey(a.ID, b.ID)
	return models.SimilarityScore{
		MemoryA:    idA,
		MemoryB:    idB,
		Method:     method,
		Score:      score,
		ComputedAt: time.Now().UTC(),
	}
}

// All returns the full detector set in fusion order.
func All() []Detector {
	return []Detector{NewExact(), NewSemantic(), NewFuzzy(DefaultFuzzyWindow)}
}

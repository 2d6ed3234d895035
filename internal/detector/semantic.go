package detector

import (
	"fmt"
	"math"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

// Semantic scores pairs by cosine similarity of their embedding vectors,
// mapped from [-1,1] to [0,1]. A missing embedding is an abstention, never
// a zero: "no signal" must not be read as "definitely not a duplicate".
type Semantic struct{}

// NewSemantic creates the embedding-cosine detector.
func NewSemantic() *Semantic {
	return &Semantic{}
}

// Method returns models.MethodSemantic.
func (d *Semantic) Method() models.Method {
	return models.MethodSemantic
}

// Score computes (cos+1)/2 over the two embeddings.
func (d *Semantic) Score(a, b *models.Memory) (models.SimilarityScore, error) {
	if !a.HasEmbedding() || !b.HasEmbedding() {
		return models.SimilarityScore{}, &Error{
			Method: models.MethodSemantic,
			Kind:   KindMissingSignal,
			Detail: "embedding absent",
		}
	}
	if len(a.Embedding) != len(b.Embedding) {
		return models.SimilarityScore{}, &Error{
			Method: models.MethodSemantic,
			Kind:   KindMissingSignal,
			Detail: fmt.Sprintf("dimension mismatch: %d vs %d", len(a.Embedding), len(b.Embedding)),
		}
	}

	cos := CosineSimilarity(a.Embedding, b.Embedding)
	score := (cos + 1.0) / 2.0

	// Guard against float drift at the interval edges.
	score = math.Max(0, math.Min(1, score))
	return newScore(models.MethodSemantic, a, b, score), nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 when either vector has zero norm.
func CosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

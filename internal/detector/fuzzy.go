package detector

import (
	"github.com/agnivade/levenshtein"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

// DefaultFuzzyWindow is the rune cap applied to each side before the edit
// distance computation. Edit distance is O(n*m); without the cap a pair of
// long documents dominates a batch.
const DefaultFuzzyWindow = 2000

// Fuzzy blends Jaccard token-set overlap with a length-normalized edit
// distance, 50/50. Contents longer than the window are truncated for the
// edit-distance half only, so fuzzy scores on long documents are lossy and
// never used for exact-duplicate claims.
type Fuzzy struct {
	window int
}

// NewFuzzy creates the fuzzy detector with the given truncation window.
// A window <= 0 falls back to DefaultFuzzyWindow.
func NewFuzzy(window int) *Fuzzy {
	if window <= 0 {
		window = DefaultFuzzyWindow
	}
	return &Fuzzy{window: window}
}

// Method returns models.MethodFuzzy.
func (d *Fuzzy) Method() models.Method {
	return models.MethodFuzzy
}

// Score computes 0.5*jaccard + 0.5*editSimilarity over normalized content.
func (d *Fuzzy) Score(a, b *models.Memory) (models.SimilarityScore, error) {
	normA := Normalize(a.Content)
	normB := Normalize(b.Content)
	if normA == "" || normB == "" {
		return models.SimilarityScore{}, &Error{
			Method: models.MethodFuzzy,
			Kind:   KindEmptyContent,
			Detail: "normalized content is empty",
		}
	}

	jac := jaccard(TokenSet(normA), TokenSet(normB))
	edit := d.editSimilarity(normA, normB)

	return newScore(models.MethodFuzzy, a, b, 0.5*jac+0.5*edit), nil
}

// jaccard computes |A∩B| / |A∪B| over token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// editSimilarity is 1 - distance/maxLen over the truncated contents.
func (d *Fuzzy) editSimilarity(a, b string) float64 {
	a = truncateRunes(a, d.window)
	b = truncateRunes(b, d.window)

	lenA := len([]rune(a))
	lenB := len([]rune(b))
	maxLen := lenA
	if lenB > maxLen {
		maxLen = lenB
	}
	if maxLen == 0 {
		return 0
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

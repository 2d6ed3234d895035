package detector

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

// Exact scores 1.0 when two memories have identical normalized content,
// else 0.0. Hashes are memoized per memory so a batch hashes each memory
// once, not once per pair.
type Exact struct {
	mu     sync.Mutex
	hashes map[string]string // memory id -> hex hash of normalized content
}

// NewExact creates the exact-match detector.
func NewExact() *Exact {
	return &Exact{hashes: make(map[string]string)}
}

// Method returns models.MethodExact.
func (d *Exact) Method() models.Method {
	return models.MethodExact
}

// Score compares content hashes. Abstains when either memory normalizes to
// empty content: two empty memories are not evidence of duplication.
func (d *Exact) Score(a, b *models.Memory) (models.SimilarityScore, error) {
	hashA, okA := d.hash(a)
	hashB, okB := d.hash(b)
	if !okA || !okB {
		return models.SimilarityScore{}, &Error{
			Method: models.MethodExact,
			Kind:   KindEmptyContent,
			Detail: "normalized content is empty",
		}
	}

	score := 0.0
	if hashA == hashB {
		score = 1.0
	}
	return newScore(models.MethodExact, a, b, score), nil
}

// hash returns the memoized content hash, computing it on first use.
// The second return is false when the normalized content is empty.
func (d *Exact) hash(m *models.Memory) (string, bool) {
	d.mu.Lock()
	h, ok := d.hashes[m.ID]
	d.mu.Unlock()
	if ok {
		return h, h != ""
	}

	normalized := Normalize(m.Content)
	if normalized == "" {
		d.mu.Lock()
		d.hashes[m.ID] = ""
		d.mu.Unlock()
		return "", false
	}

	sum := sha256.Sum256([]byte(normalized))
	h = hex.EncodeToString(sum[:])

	d.mu.Lock()
	d.hashes[m.ID] = h
	d.mu.Unlock()
	return h, true
}

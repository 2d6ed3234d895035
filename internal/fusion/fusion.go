// Package fusion combines per-method similarity scores into a single
// confidence value. Methods that abstained on a pair are excluded and the
// remaining weights are renormalized, so a missing embedding lowers the
// evidence base without biasing the verdict toward zero.
package fusion

import (
	"github.com/raphaelgruber/memdedup-go/internal/models"
)

// Result is the fused verdict for one memory pair.
type Result struct {
	// Confidence is the weighted average over the contributing methods.
	Confidence float64
	// Contributing lists the methods that produced a score, in the fixed
	// models.Methods() order.
	Contributing []models.Method
	// ExactMatch is true when any contributing method scored 1.0.
	ExactMatch bool
}

// Fuse combines the scores of the methods that did not abstain. scores maps
// method to its raw score in [0,1]; methods absent from the map abstained.
// The second return is false when every method abstained, in which case the
// pair carries no evidence at all and must be excluded from clustering.
func Fuse(weights map[models.Method]float64, scores map[models.Method]float64) (Result, bool) {
	var (
		res       Result
		weightSum float64
		weighted  float64
	)

	for _, m := range models.Methods() {
		score, ok := scores[m]
		if !ok {
			continue
		}
		w := weights[m]
		if w <= 0 {
			continue
		}
		weightSum += w
		weighted += w * score
		res.Contributing = append(res.Contributing, m)
		if score == 1.0 {
			res.ExactMatch = true
		}
	}

	if weightSum < models.WeightEpsilon {
		return Result{}, false
	}

	res.Confidence = weighted / weightSum
	return res, true
}

// Eligible reports whether a fused pair qualifies as a duplicate edge.
// A perfect score from any single method qualifies regardless of the fused
// confidence: exact content identity must never be diluted away by a noisy
// embedding.
func Eligible(res Result, threshold float64) bool {
	if res.ExactMatch {
		return true
	}
	return res.Confidence >= threshold
}

// RenormalizedWeights returns the effective weight of each contributing
// method after exclusion of the abstaining ones. Exposed for reporting;
// Fuse applies the same arithmetic internally.
func RenormalizedWeights(weights map[models.Method]float64, contributing []models.Method) map[models.Method]float64 {
	var sum float64
	for _, m := range contributing {
		sum += weights[m]
	}
	out := make(map[models.Method]float64, len(contributing))
	if sum < models.WeightEpsilon {
		return out
	}
	for _, m := range contributing {
		out[m] = weights[m] / sum
	}
	return out
}

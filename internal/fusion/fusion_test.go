package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

func defaultWeights() map[models.Method]float64 {
	return map[models.Method]float64{
		models.MethodExact:    0.3,
		models.MethodSemantic: 0.4,
		models.MethodFuzzy:    0.3,
	}
}

func TestFuseAllMethodsContribute(t *testing.T) {
	res, ok := Fuse(defaultWeights(), map[models.Method]float64{
		models.MethodExact:    1.0,
		models.MethodSemantic: 0.9,
		models.MethodFuzzy:    0.8,
	})
	require.True(t, ok)
	assert.InDelta(t, 0.3*1.0+0.4*0.9+0.3*0.8, res.Confidence, 1e-9)
	assert.Len(t, res.Contributing, 3)
	assert.True(t, res.ExactMatch)
}

func TestFuseRenormalizesOnAbstention(t *testing.T) {
	// Semantic abstained; exact and fuzzy keep their relative proportions:
	// 0.3/0.6 each.
	res, ok := Fuse(defaultWeights(), map[models.Method]float64{
		models.MethodExact: 0.0,
		models.MethodFuzzy: 0.9,
	})
	require.True(t, ok)
	assert.InDelta(t, 0.5*0.0+0.5*0.9, res.Confidence, 1e-9)
	assert.Equal(t, []models.Method{models.MethodExact, models.MethodFuzzy}, res.Contributing)
	assert.False(t, res.ExactMatch)
}

func TestFuseSingleMethod(t *testing.T) {
	res, ok := Fuse(defaultWeights(), map[models.Method]float64{
		models.MethodSemantic: 0.7,
	})
	require.True(t, ok)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
}

func TestFuseAllAbstained(t *testing.T) {
	_, ok := Fuse(defaultWeights(), map[models.Method]float64{})
	assert.False(t, ok)
}

func TestFuseZeroWeightMethodIgnored(t *testing.T) {
	weights := map[models.Method]float64{
		models.MethodExact:    0.0,
		models.MethodSemantic: 0.5,
		models.MethodFuzzy:    0.5,
	}
	res, ok := Fuse(weights, map[models.Method]float64{
		models.MethodExact: 1.0, // scored, but carries no weight
		models.MethodFuzzy: 0.4,
	})
	require.True(t, ok)
	assert.InDelta(t, 0.4, res.Confidence, 1e-9)
	assert.Equal(t, []models.Method{models.MethodFuzzy}, res.Contributing)
	// An exact score of 1.0 with zero weight does not contribute.
	assert.False(t, res.ExactMatch)
}

func TestEligibleByThreshold(t *testing.T) {
	assert.True(t, Eligible(Result{Confidence: 0.85}, 0.85))
	assert.False(t, Eligible(Result{Confidence: 0.84}, 0.85))
}

func TestEligibleByPerfectScore(t *testing.T) {
	// A perfect exact match qualifies even when semantic noise drags the
	// fused confidence below the threshold.
	res := Result{Confidence: 0.6, ExactMatch: true}
	assert.True(t, Eligible(res, 0.85))
}

func TestRenormalizedWeights(t *testing.T) {
	got := RenormalizedWeights(defaultWeights(), []models.Method{
		models.MethodExact, models.MethodFuzzy,
	})
	assert.InDelta(t, 0.5, got[models.MethodExact], 1e-9)
	assert.InDelta(t, 0.5, got[models.MethodFuzzy], 1e-9)

	got = RenormalizedWeights(defaultWeights(), []models.Method{models.MethodSemantic})
	assert.InDelta(t, 1.0, got[models.MethodSemantic], 1e-9)
}

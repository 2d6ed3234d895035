package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

func group(id string, confidence float64, members ...string) models.DuplicateGroup {
	return models.DuplicateGroup{
		ID:         id,
		MemberIDs:  members,
		Primary:    members[0],
		Confidence: confidence,
		Status:     models.GroupStatusPending,
	}
}

func TestBatchAcceptsValidGroups(t *testing.T) {
	cfg := models.DefaultDeduplicationConfig()
	res := Batch([]models.DuplicateGroup{
		group("g1", 0.9, "a", "b"),
		group("g2", 0.85, "c", "d", "e"),
	}, cfg)

	assert.Len(t, res.Accepted, 2)
	assert.Empty(t, res.Rejection)
}

func TestBatchRejectsSingletonGroup(t *testing.T) {
	cfg := models.DefaultDeduplicationConfig()
	res := Batch([]models.DuplicateGroup{group("g1", 0.9, "a")}, cfg)

	assert.Empty(t, res.Accepted)
	require.Len(t, res.Rejection, 1)
	assert.Equal(t, "g1", res.Rejection[0].GroupID)
	assert.Equal(t, CodeGroupTooSmall, res.Rejection[0].Code)
}

func TestBatchRejectsLowConfidence(t *testing.T) {
	cfg := models.DefaultDeduplicationConfig()
	res := Batch([]models.DuplicateGroup{group("g1", 0.79, "a", "b")}, cfg)

	require.Len(t, res.Rejection, 1)
	assert.Equal(t, CodeConfidenceBelowFloor, res.Rejection[0].Code)
}

func TestBatchRejectsOversizedGroup(t *testing.T) {
	cfg := models.DefaultDeduplicationConfig()
	cfg.MaxGroupSize = 3

	res := Batch([]models.DuplicateGroup{
		group("g1", 0.9, "a", "b", "c", "d"),
	}, cfg)

	require.Len(t, res.Rejection, 1)
	assert.Equal(t, CodeGroupTooLarge, res.Rejection[0].Code)
}

func TestBatchRejectsOverlapKeepsDisjoint(t *testing.T) {
	// Overlapping groups: the first claims its members, the second is
	// rejected, and a disjoint third group still passes.
	cfg := models.DefaultDeduplicationConfig()
	res := Batch([]models.DuplicateGroup{
		group("g1", 0.9, "a", "b"),
		group("g2", 0.95, "b", "c"),
		group("g3", 0.9, "d", "e"),
	}, cfg)

	require.Len(t, res.Accepted, 2)
	assert.Equal(t, "g1", res.Accepted[0].ID)
	assert.Equal(t, "g3", res.Accepted[1].ID)

	require.Len(t, res.Rejection, 1)
	assert.Equal(t, "g2", res.Rejection[0].GroupID)
	assert.Equal(t, CodeGroupOverlap, res.Rejection[0].Code)
	assert.Contains(t, res.Rejection[0].Detail, "b")
}

func TestBatchRejectsOversizedBatch(t *testing.T) {
	cfg := models.DefaultDeduplicationConfig()
	cfg.MaxBatchSize = 2

	res := Batch([]models.DuplicateGroup{
		group("g1", 0.9, "a", "b"),
		group("g2", 0.9, "c", "d"),
		group("g3", 0.9, "e", "f"),
	}, cfg)

	assert.Empty(t, res.Accepted)
	require.Len(t, res.Rejection, 1)
	assert.Empty(t, res.Rejection[0].GroupID)
	assert.Equal(t, CodeBatchTooLarge, res.Rejection[0].Code)
}

func TestBatchEmptyInput(t *testing.T) {
	res := Batch(nil, models.DefaultDeduplicationConfig())
	assert.Empty(t, res.Accepted)
	assert.Empty(t, res.Rejection)
}

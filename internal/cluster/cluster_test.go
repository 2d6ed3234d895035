package cluster

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

func clusterMem(id string, importance float64, created time.Time) *models.Memory {
	return &models.Memory{
		ID:         id,
		Content:    "content " + id,
		Importance: importance,
		Active:     true,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func memIndex(mems ...*models.Memory) map[string]*models.Memory {
	out := make(map[string]*models.Memory, len(mems))
	for _, m := range mems {
		out[m.ID] = m
	}
	return out
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestClusterConnectedComponents(t *testing.T) {
	mems := memIndex(
		clusterMem("a", 0.5, baseTime),
		clusterMem("b", 0.5, baseTime),
		clusterMem("c", 0.5, baseTime),
		clusterMem("x", 0.5, baseTime),
		clusterMem("y", 0.5, baseTime),
	)
	edges := []Edge{
		{A: "a", B: "b", Confidence: 0.9, Methods: []models.Method{models.MethodFuzzy}},
		{A: "b", B: "c", Confidence: 0.88, Methods: []models.Method{models.MethodFuzzy}},
		{A: "x", B: "y", Confidence: 0.95, Methods: []models.Method{models.MethodSemantic}},
	}

	groups := Cluster(mems, edges, 10)
	require.Len(t, groups, 2)

	assert.Equal(t, []string{"a", "b", "c"}, groups[0].MemberIDs)
	assert.Equal(t, []string{"x", "y"}, groups[1].MemberIDs)
	assert.Equal(t, models.GroupStatusPending, groups[0].Status)
	assert.InDelta(t, (0.9+0.88)/2, groups[0].Confidence, 1e-9)
}

func TestClusterIsDeterministic(t *testing.T) {
	mems := memIndex(
		clusterMem("m1", 0.2, baseTime),
		clusterMem("m2", 0.9, baseTime.Add(time.Hour)),
		clusterMem("m3", 0.9, baseTime),
		clusterMem("m4", 0.1, baseTime),
	)
	edges := []Edge{
		{A: "m1", B: "m2", Confidence: 0.9},
		{A: "m2", B: "m3", Confidence: 0.9},
		{A: "m3", B: "m4", Confidence: 0.87},
	}

	first := Cluster(mems, edges, 10)
	second := Cluster(mems, edges, 10)
	require.Len(t, first, 1)
	require.Len(t, second, 1)

	assert.Equal(t, first[0].MemberIDs, second[0].MemberIDs)
	assert.Equal(t, first[0].Primary, second[0].Primary)
	assert.Equal(t, first[0].Confidence, second[0].Confidence)
}

func TestRepresentativeOrdering(t *testing.T) {
	// Importance wins first.
	mems := memIndex(
		clusterMem("a", 0.3, baseTime),
		clusterMem("b", 0.8, baseTime.Add(time.Hour)),
	)
	assert.Equal(t, "b", Representative(mems, []string{"a", "b"}))

	// Equal importance: older memory wins.
	mems = memIndex(
		clusterMem("a", 0.5, baseTime.Add(time.Hour)),
		clusterMem("b", 0.5, baseTime),
	)
	assert.Equal(t, "b", Representative(mems, []string{"a", "b"}))

	// Full tie: smaller id wins.
	mems = memIndex(
		clusterMem("a", 0.5, baseTime),
		clusterMem("b", 0.5, baseTime),
	)
	assert.Equal(t, "a", Representative(mems, []string{"b", "a"}))
}

func TestOversizedComponentIsSplit(t *testing.T) {
	// Fully connected component of 2x the max size with uniform confidence;
	// tightening cannot separate it, so chunking must.
	const max = 4
	var ids []string
	mems := map[string]*models.Memory{}
	for i := 0; i < 2*max; i++ {
		id := fmt.Sprintf("m%02d", i)
		ids = append(ids, id)
		mems[id] = clusterMem(id, 0.5, baseTime)
	}
	var edges []Edge
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			edges = append(edges, Edge{A: ids[i], B: ids[j], Confidence: 0.9})
		}
	}

	groups := Cluster(mems, edges, max)
	require.GreaterOrEqual(t, len(groups), 2)

	seen := map[string]bool{}
	for _, g := range groups {
		assert.LessOrEqual(t, g.Size(), max)
		assert.GreaterOrEqual(t, g.Size(), 2)
		for _, id := range g.MemberIDs {
			assert.False(t, seen[id], "member %s in two groups", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 2*max)
}

func TestOversizedSplitPrefersStrongEdges(t *testing.T) {
	// Two tight triangles joined by one weak bridge. Tightening the cutoff
	// removes the bridge and yields the natural sub-clusters.
	mems := map[string]*models.Memory{}
	for _, id := range []string{"a1", "a2", "a3", "b1", "b2", "b3"} {
		mems[id] = clusterMem(id, 0.5, baseTime)
	}
	edges := []Edge{
		{A: "a1", B: "a2", Confidence: 0.95},
		{A: "a1", B: "a3", Confidence: 0.95},
		{A: "a2", B: "a3", Confidence: 0.95},
		{A: "b1", B: "b2", Confidence: 0.93},
		{A: "b1", B: "b3", Confidence: 0.93},
		{A: "b2", B: "b3", Confidence: 0.93},
		{A: "a3", B: "b1", Confidence: 0.86}, // bridge
	}

	groups := Cluster(mems, edges, 4)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"a1", "a2", "a3"}, groups[0].MemberIDs)
	assert.Equal(t, []string{"b1", "b2", "b3"}, groups[1].MemberIDs)
}

func TestAllExactEdgesForceConfidenceOne(t *testing.T) {
	mems := memIndex(
		clusterMem("a", 0.5, baseTime),
		clusterMem("b", 0.5, baseTime),
	)
	edges := []Edge{{
		A: "a", B: "b", Confidence: 0.91, Exact: true,
		Methods: []models.Method{models.MethodExact},
	}}

	groups := Cluster(mems, edges, 10)
	require.Len(t, groups, 1)
	assert.Equal(t, 1.0, groups[0].Confidence)
	assert.Equal(t, models.StrategyMergeSimilar, groups[0].SuggestedStrategy)
}

func TestCommonTagsAndTopicStrategy(t *testing.T) {
	a := clusterMem("a", 0.5, baseTime)
	a.Tags = []string{"shopping", "errands"}
	b := clusterMem("b", 0.5, baseTime)
	b.Tags = []string{"shopping", "food"}

	groups := Cluster(memIndex(a, b), []Edge{{A: "a", B: "b", Confidence: 0.9}}, 10)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"shopping"}, groups[0].CommonTags)
	assert.Equal(t, models.StrategyTopicBased, groups[0].SuggestedStrategy)
}

func TestChronologicalStrategyForWideSpan(t *testing.T) {
	a := clusterMem("a", 0.5, baseTime)
	b := clusterMem("b", 0.5, baseTime.Add(45*24*time.Hour))

	groups := Cluster(memIndex(a, b), []Edge{{A: "a", B: "b", Confidence: 0.9}}, 10)
	require.Len(t, groups, 1)
	assert.Equal(t, models.StrategyChronological, groups[0].SuggestedStrategy)
}

func TestCommonEntitiesFromMetadata(t *testing.T) {
	a := clusterMem("a", 0.5, baseTime)
	a.Metadata = map[string]any{"entities": []string{"alice", "bob"}}
	b := clusterMem("b", 0.5, baseTime)
	b.Metadata = map[string]any{"entities": []any{"bob", "carol"}}

	groups := Cluster(memIndex(a, b), []Edge{{A: "a", B: "b", Confidence: 0.9}}, 10)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"bob"}, groups[0].CommonEntities)
}

func TestMethodsUnionInFixedOrder(t *testing.T) {
	mems := memIndex(
		clusterMem("a", 0.5, baseTime),
		clusterMem("b", 0.5, baseTime),
		clusterMem("c", 0.5, baseTime),
	)
	edges := []Edge{
		{A: "a", B: "b", Confidence: 0.9, Methods: []models.Method{models.MethodFuzzy, models.MethodSemantic}},
		{A: "b", B: "c", Confidence: 0.9, Methods: []models.Method{models.MethodExact}},
	}

	groups := Cluster(mems, edges, 10)
	require.Len(t, groups, 1)
	assert.Equal(t, []models.Method{
		models.MethodExact, models.MethodSemantic, models.MethodFuzzy,
	}, groups[0].Methods)
}

func TestNoEdgesNoGroups(t *testing.T) {
	assert.Nil(t, Cluster(map[string]*models.Memory{}, nil, 10))
}

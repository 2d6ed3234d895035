package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/memdedup-go/internal/detector"
	"github.com/raphaelgruber/memdedup-go/internal/models"
	"github.com/raphaelgruber/memdedup-go/internal/scorecache"
)

// fakeStore is an in-memory Store for engine tests.
type fakeStore struct {
	mu       sync.Mutex
	memories map[string]*models.Memory
	groups   map[string]*models.DuplicateGroup
	merged   []*models.ConsolidatedMemory
	scores   []models.SimilarityScore
}

func newFakeStore(memories ...*models.Memory) *fakeStore {
	s := &fakeStore{
		memories: make(map[string]*models.Memory),
		groups:   make(map[string]*models.DuplicateGroup),
	}
	for _, m := range memories {
		s.memories[m.ID] = m
	}
	return s
}

func (s *fakeStore) ListActiveMemories(_ context.Context, filter models.MemoryFilter) ([]*models.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Memory
	for _, m := range s.memories {
		if !m.Active {
			continue
		}
		if len(filter.Tags) > 0 && !hasAnyTag(m, filter.Tags) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func hasAnyTag(m *models.Memory, tags []string) bool {
	for _, want := range tags {
		for _, have := range m.Tags {
			if want == have {
				return true
			}
		}
	}
	return false
}

func (s *fakeStore) GetMemory(_ context.Context, id string) (*models.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok {
		return nil, fmt.Errorf("memory %s not found", id)
	}
	return m, nil
}

func (s *fakeStore) SaveDuplicateGroup(_ context.Context, group *models.DuplicateGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *group
	s.groups[group.ID] = &copied
	return nil
}

func (s *fakeStore) GetDuplicateGroup(_ context.Context, id string) (*models.DuplicateGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("group %s not found", id)
	}
	copied := *g
	return &copied, nil
}

func (s *fakeStore) ListDuplicateGroups(_ context.Context, status models.GroupStatus) ([]*models.DuplicateGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DuplicateGroup
	for _, g := range s.groups {
		if status == "" || g.Status == status {
			copied := *g
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateGroupStatus(_ context.Context, id string, from, to models.GroupStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return fmt.Errorf("group %s not found", id)
	}
	if g.Status != from {
		return fmt.Errorf("group %s is %s, not %s", id, g.Status, from)
	}
	g.Status = to
	return nil
}

func (s *fakeStore) SaveConsolidatedMemory(_ context.Context, merged *models.ConsolidatedMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merged = append(s.merged, merged)
	return nil
}

func (s *fakeStore) LoadScores(_ context.Context) ([]models.SimilarityScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores, nil
}

func (s *fakeStore) SaveScores(_ context.Context, scores []models.SimilarityScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = scores
	return nil
}

var memTime = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func activeMem(id, content string) *models.Memory {
	return &models.Memory{
		ID:         id,
		Content:    content,
		Importance: 0.5,
		Active:     true,
		CreatedAt:  memTime,
		UpdatedAt:  memTime,
	}
}

func newTestEngine(store Store) *Engine {
	return New(store, detector.All(), scorecache.New(), nil, 2)
}

func defaultOpts() RunOptions {
	return RunOptions{Config: models.DefaultDeduplicationConfig()}
}

func TestRunFindsExactDuplicates(t *testing.T) {
	store := newFakeStore(
		activeMem("a", "Buy milk"),
		activeMem("b", "buy   milk"),
		activeMem("c", "write quarterly report"),
	)
	e := newTestEngine(store)

	result, err := e.RunDeduplication(context.Background(), defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, 3, result.MemoriesScanned)
	assert.Equal(t, 3, result.PairsConsidered)
	require.Len(t, result.Groups, 1)

	g := result.Groups[0]
	assert.ElementsMatch(t, []string{"a", "b"}, g.MemberIDs)
	assert.Equal(t, 1.0, g.Confidence)
	assert.Equal(t, models.GroupStatusPending, g.Status)

	// The group was persisted.
	stored, err := store.GetDuplicateGroup(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusPending, stored.Status)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	e := newTestEngine(newFakeStore())
	opts := defaultOpts()
	opts.Config.MethodWeights[models.MethodExact] = 0.9 // sum now > 1

	_, err := e.RunDeduplication(context.Background(), opts)
	require.Error(t, err)

	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRunIsDeterministic(t *testing.T) {
	mems := func() []*models.Memory {
		return []*models.Memory{
			activeMem("a", "project kickoff on monday morning"),
			activeMem("b", "Project kickoff on Monday morning"),
			activeMem("c", "project kickoff monday morning time"),
			activeMem("d", "dentist appointment thursday"),
		}
	}

	run := func() *RunResult {
		e := newTestEngine(newFakeStore(mems()...))
		res, err := e.RunDeduplication(context.Background(), defaultOpts())
		require.NoError(t, err)
		return res
	}

	first := run()
	second := run()
	require.Equal(t, len(first.Groups), len(second.Groups))
	for i := range first.Groups {
		assert.Equal(t, first.Groups[i].MemberIDs, second.Groups[i].MemberIDs)
		assert.Equal(t, first.Groups[i].Primary, second.Groups[i].Primary)
		assert.Equal(t, first.Groups[i].Confidence, second.Groups[i].Confidence)
	}
}

func TestIncrementalRunSkipsIndexPairs(t *testing.T) {
	store := newFakeStore(
		activeMem("a", "alpha"),
		activeMem("b", "beta"),
		activeMem("c", "gamma"),
		activeMem("new", "delta"),
	)
	e := newTestEngine(store)

	opts := defaultOpts()
	opts.CandidateIDs = []string{"new"}
	result, err := e.RunDeduplication(context.Background(), opts)
	require.NoError(t, err)

	// Only the 3 pairs touching "new", never the 3 index-only pairs.
	assert.Equal(t, 3, result.PairsConsidered)
}

func TestSecondRunHitsCache(t *testing.T) {
	store := newFakeStore(
		activeMem("a", "Buy milk"),
		activeMem("b", "buy   milk"),
	)
	e := newTestEngine(store)

	first, err := e.RunDeduplication(context.Background(), defaultOpts())
	require.NoError(t, err)
	assert.Equal(t, 0, first.CacheHits)

	second, err := e.RunDeduplication(context.Background(), defaultOpts())
	require.NoError(t, err)
	assert.Greater(t, second.CacheHits, 0)
}

func TestRunHonorsCancellation(t *testing.T) {
	var mems []*models.Memory
	for i := 0; i < 30; i++ {
		mems = append(mems, activeMem(fmt.Sprintf("m%02d", i), fmt.Sprintf("note number %d", i)))
	}
	e := newTestEngine(newFakeStore(mems...))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.RunDeduplication(ctx, defaultOpts())
	require.ErrorIs(t, err, context.Canceled)
}

func TestWarmStartPersistsAndReusesScores(t *testing.T) {
	store := newFakeStore(
		activeMem("a", "Buy milk"),
		activeMem("b", "buy   milk"),
	)
	opts := defaultOpts()
	opts.WarmStart = true

	e1 := newTestEngine(store)
	_, err := e1.RunDeduplication(context.Background(), opts)
	require.NoError(t, err)
	require.NotEmpty(t, store.scores)

	// A fresh engine with an empty cache warm-starts from the store.
	e2 := newTestEngine(store)
	result, err := e2.RunDeduplication(context.Background(), opts)
	require.NoError(t, err)
	assert.Greater(t, result.CacheHits, 0)
}

func TestApproveConsolidation(t *testing.T) {
	store := newFakeStore(
		activeMem("a", "Buy milk"),
		activeMem("b", "buy   milk"),
	)
	e := newTestEngine(store)

	result, err := e.RunDeduplication(context.Background(), defaultOpts())
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	groupID := result.Groups[0].ID

	merged, err := e.ApproveConsolidation(context.Background(), groupID, models.StrategyMergeSimilar)
	require.NoError(t, err)

	assert.Equal(t, "Buy milk", merged.Content)
	assert.Equal(t, []string{"a", "b"}, merged.OriginalMemoryIDs)
	assert.GreaterOrEqual(t, merged.QualityScore, 0.9)

	// Originals are untouched and still active.
	a, err := store.GetMemory(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, a.Active)
	assert.Equal(t, "Buy milk", a.Content)

	// The group reached its terminal status.
	g, err := store.GetDuplicateGroup(context.Background(), groupID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusConsolidated, g.Status)

	// Double approval fails.
	_, err = e.ApproveConsolidation(context.Background(), groupID, models.StrategyMergeSimilar)
	require.ErrorIs(t, err, ErrGroupNotPending)
}

func TestPreviewWritesNothing(t *testing.T) {
	store := newFakeStore(
		activeMem("a", "Buy milk"),
		activeMem("b", "buy   milk"),
	)
	e := newTestEngine(store)

	result, err := e.RunDeduplication(context.Background(), defaultOpts())
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)

	preview, err := e.PreviewConsolidation(context.Background(), result.Groups[0].ID, models.StrategyMergeSimilar)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", preview.Content)

	assert.Empty(t, store.merged)
	g, err := store.GetDuplicateGroup(context.Background(), result.Groups[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusPending, g.Status)
}

func TestDismissGroup(t *testing.T) {
	store := newFakeStore(
		activeMem("a", "Buy milk"),
		activeMem("b", "buy   milk"),
	)
	e := newTestEngine(store)

	result, err := e.RunDeduplication(context.Background(), defaultOpts())
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	groupID := result.Groups[0].ID

	require.NoError(t, e.DismissGroup(context.Background(), groupID))

	g, err := store.GetDuplicateGroup(context.Background(), groupID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusDismissed, g.Status)

	// Terminal: no consolidation, no second dismissal.
	_, err = e.ApproveConsolidation(context.Background(), groupID, models.StrategyMergeSimilar)
	assert.ErrorIs(t, err, ErrGroupNotPending)
	assert.ErrorIs(t, e.DismissGroup(context.Background(), groupID), ErrGroupNotPending)
}

func TestGetDuplicateGroupsFiltersByStatus(t *testing.T) {
	store := newFakeStore(
		activeMem("a", "Buy milk"),
		activeMem("b", "buy   milk"),
	)
	e := newTestEngine(store)

	result, err := e.RunDeduplication(context.Background(), defaultOpts())
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)

	pending, err := e.GetDuplicateGroups(context.Background(), models.GroupStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, e.DismissGroup(context.Background(), result.Groups[0].ID))

	pending, err = e.GetDuplicateGroups(context.Background(), models.GroupStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := e.GetDuplicateGroups(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSemanticOnlyPairNeedsEmbeddings(t *testing.T) {
	// Without embeddings the semantic method abstains; exact and fuzzy carry
	// the decision with renormalized weights.
	a := activeMem("a", "the cat sat on the mat")
	b := activeMem("b", "the cat sat on the mat")
	e := newTestEngine(newFakeStore(a, b))

	result, err := e.RunDeduplication(context.Background(), defaultOpts())
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, 1.0, result.Groups[0].Confidence)
}

func TestProgressCallbackSeesAllPairs(t *testing.T) {
	store := newFakeStore(
		activeMem("a", "one"),
		activeMem("b", "two"),
		activeMem("c", "three"),
	)
	e := newTestEngine(store)

	var mu sync.Mutex
	var seen []int
	opts := defaultOpts()
	opts.OnProgress = func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, done)
		assert.Equal(t, 3, total)
	}

	_, err := e.RunDeduplication(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, seen, 3)
}

func TestGroupNotFound(t *testing.T) {
	e := newTestEngine(newFakeStore())
	_, err := e.ApproveConsolidation(context.Background(), "missing", models.StrategyMergeSimilar)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrGroupNotPending))
}

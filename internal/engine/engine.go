// Package engine orchestrates deduplication runs and the consolidation
// lifecycle of duplicate groups. It owns no storage and no detectors of its
// own: everything is injected, which keeps runs reproducible and the engine
// testable against an in-memory store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/memdedup-go/internal/consolidate"
	"github.com/raphaelgruber/memdedup-go/internal/detector"
	"github.com/raphaelgruber/memdedup-go/internal/metrics"
	"github.com/raphaelgruber/memdedup-go/internal/models"
	"github.com/raphaelgruber/memdedup-go/internal/scorecache"
)

// Store is the persistence surface the engine needs. The production
// implementation is db.Client; tests use an in-memory fake.
type Store interface {
	// ListActiveMemories returns the active memories matching the filter.
	ListActiveMemories(ctx context.Context, filter models.MemoryFilter) ([]*models.Memory, error)
	// GetMemory returns one memory by id, active or not.
	GetMemory(ctx context.Context, id string) (*models.Memory, error)

	// SaveDuplicateGroup persists a new pending group.
	SaveDuplicateGroup(ctx context.Context, group *models.DuplicateGroup) error
	// GetDuplicateGroup returns one group by id.
	GetDuplicateGroup(ctx context.Context, id string) (*models.DuplicateGroup, error)
	// ListDuplicateGroups returns groups, optionally filtered by status
	// (empty status means all).
	ListDuplicateGroups(ctx context.Context, status models.GroupStatus) ([]*models.DuplicateGroup, error)
	// UpdateGroupStatus transitions a group from one status to another.
	// Implementations must make the transition conditional on the current
	// status so double approval fails instead of double-writing.
	UpdateGroupStatus(ctx context.Context, id string, from, to models.GroupStatus) error

	// SaveConsolidatedMemory persists the merged record.
	SaveConsolidatedMemory(ctx context.Context, merged *models.ConsolidatedMemory) error

	// LoadScores returns previously persisted similarity scores.
	LoadScores(ctx context.Context) ([]models.SimilarityScore, error)
	// SaveScores persists the given scores, replacing existing entries for
	// the same (method, pair).
	SaveScores(ctx context.Context, scores []models.SimilarityScore) error
}

// ErrGroupNotPending is returned when consolidation or dismissal is
// attempted on a group that already reached a terminal status.
var ErrGroupNotPending = errors.New("duplicate group is not pending")

// Engine runs deduplication and manages group consolidation.
type Engine struct {
	store        Store
	detectors    []detector.Detector
	cache        *scorecache.Cache
	consolidator *consolidate.Consolidator
	metrics      *metrics.Collector
	workers      int

	// Per-group advisory locks: two approvals of the same group serialize
	// here, different groups proceed in parallel.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates an engine. workers <= 0 falls back to 4.
func New(store Store, detectors []detector.Detector, cache *scorecache.Cache, collector *metrics.Collector, workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	if cache == nil {
		cache = scorecache.New()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Engine{
		store:        store,
		detectors:    detectors,
		cache:        cache,
		consolidator: consolidate.New(),
		metrics:      collector,
		workers:      workers,
		locks:        make(map[string]*sync.Mutex),
	}
}

// Metrics exposes the engine's collector for the stats surface.
func (e *Engine) Metrics() *metrics.Collector {
	return e.metrics
}

// GetDuplicateGroups lists duplicate groups, optionally filtered by status.
func (e *Engine) GetDuplicateGroups(ctx context.Context, status models.GroupStatus) ([]*models.DuplicateGroup, error) {
	groups, err := e.store.ListDuplicateGroups(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list duplicate groups: %w", err)
	}
	return groups, nil
}

// PreviewConsolidation runs the merge logic for a pending group without
// writing anything.
func (e *Engine) PreviewConsolidation(ctx context.Context, groupID string, strategy models.ConsolidationStrategy) (*models.ConsolidationPreview, error) {
	group, members, err := e.loadPendingGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return e.consolidator.Preview(group, members, strategy)
}

// ApproveConsolidation consolidates a pending group: the merged record is
// saved and the group transitions to consolidated. The engine never touches
// the original memories; preserve-originals handling is the caller's call.
func (e *Engine) ApproveConsolidation(ctx context.Context, groupID string, strategy models.ConsolidationStrategy) (*models.ConsolidatedMemory, error) {
	lock := e.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	group, members, err := e.loadPendingGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	merged, err := e.consolidator.Consolidate(group, members, strategy)
	e.metrics.RecordTiming(metrics.OpConsolidate, time.Since(start))
	if err != nil {
		return nil, err
	}

	if err := e.store.SaveConsolidatedMemory(ctx, merged); err != nil {
		return nil, fmt.Errorf("save consolidated memory: %w", err)
	}
	if err := e.store.UpdateGroupStatus(ctx, groupID, models.GroupStatusPending, models.GroupStatusConsolidated); err != nil {
		return nil, fmt.Errorf("mark group consolidated: %w", err)
	}

	slog.Info("group consolidated",
		"group", groupID,
		"strategy", merged.StrategyUsed,
		"members", len(members),
		"quality", merged.QualityScore)
	return merged, nil
}

// DismissGroup marks a pending group dismissed. Terminal: a dismissed group
// is never re-proposed or consolidated.
func (e *Engine) DismissGroup(ctx context.Context, groupID string) error {
	lock := e.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	group, err := e.store.GetDuplicateGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("load group %s: %w", groupID, err)
	}
	if group.Status != models.GroupStatusPending {
		return fmt.Errorf("%w: %s is %s", ErrGroupNotPending, groupID, group.Status)
	}
	if err := e.store.UpdateGroupStatus(ctx, groupID, models.GroupStatusPending, models.GroupStatusDismissed); err != nil {
		return fmt.Errorf("mark group dismissed: %w", err)
	}
	slog.Info("group dismissed", "group", groupID)
	return nil
}

// loadPendingGroup fetches a group, checks it is still pending, and resolves
// its members. Members that disappeared since clustering are skipped; the
// consolidator rejects the group if fewer than two remain.
func (e *Engine) loadPendingGroup(ctx context.Context, groupID string) (*models.DuplicateGroup, []*models.Memory, error) {
	group, err := e.store.GetDuplicateGroup(ctx, groupID)
	if err != nil {
		return nil, nil, fmt.Errorf("load group %s: %w", groupID, err)
	}
	if group.Status != models.GroupStatusPending {
		return nil, nil, fmt.Errorf("%w: %s is %s", ErrGroupNotPending, groupID, group.Status)
	}

	members := make([]*models.Memory, 0, len(group.MemberIDs))
	for _, id := range group.MemberIDs {
		m, err := e.store.GetMemory(ctx, id)
		if err != nil {
			slog.Warn("group member unavailable", "group", groupID, "memory", id, "error", err)
			continue
		}
		members = append(members, m)
	}
	return group, members, nil
}

func (e *Engine) groupLock(groupID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	lock, ok := e.locks[groupID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[groupID] = lock
	}
	return lock
}

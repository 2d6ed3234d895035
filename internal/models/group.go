package models

import "time"

// GroupStatus tracks the lifecycle of a duplicate group candidate.
type GroupStatus string

const (
	GroupStatusPending      GroupStatus = "pending"
	GroupStatusConsolidated GroupStatus = "consolidated"
	GroupStatusDismissed    GroupStatus = "dismissed"
)

// ConsolidationStrategy selects the content-merge policy for a group.
type ConsolidationStrategy string

const (
	StrategyMergeSimilar  ConsolidationStrategy = "merge_similar"
	StrategyChronological ConsolidationStrategy = "chronological"
	StrategyTopicBased    ConsolidationStrategy = "topic_based"
	StrategyEntityFocused ConsolidationStrategy = "entity_focused"
	StrategyHierarchical  ConsolidationStrategy = "hierarchical"
)

// Valid reports whether s names a known consolidation strategy.
func (s ConsolidationStrategy) Valid() bool {
	switch s {
	case StrategyMergeSimilar, StrategyChronological, StrategyTopicBased,
		StrategyEntityFocused, StrategyHierarchical:
		return true
	}
	return false
}

// DuplicateGroup is a candidate cluster of memories judged to carry
// overlapping information. Created by the clustering engine, gated by the
// batch validator, terminal state is consolidated or dismissed.
type DuplicateGroup struct {
	ID         string      `json:"id"`
	MemberIDs  []string    `json:"member_ids"`
	Primary    string      `json:"primary"`
	Confidence float64     `json:"confidence"`
	Status     GroupStatus `json:"status"`

	// Advisory fields derived during clustering.
	CommonTags        []string              `json:"common_tags,omitempty"`
	CommonEntities    []string              `json:"common_entities,omitempty"`
	SuggestedStrategy ConsolidationStrategy `json:"suggested_strategy"`
	Methods           []Method              `json:"detection_methods_used"`

	CreatedAt time.Time `json:"created_at"`
}

// Size returns the member count.
func (g *DuplicateGroup) Size() int {
	return len(g.MemberIDs)
}

// Contains reports whether id is a member of the group.
func (g *DuplicateGroup) Contains(id string) bool {
	for _, m := range g.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}

package models

import "time"

// ConsolidatedMemory is the merged record produced from an approved
// DuplicateGroup. It never overwrites its sources: the engine's output is
// additive, and OriginalMemoryIDs keeps the full lineage.
type ConsolidatedMemory struct {
	ID                string                `json:"id"`
	Title             string                `json:"title"`
	Content           string                `json:"content"`
	Tags              []string              `json:"tags,omitempty"`
	Metadata          map[string]any        `json:"metadata,omitempty"`
	Importance        float64               `json:"importance"`
	OriginalMemoryIDs []string              `json:"original_memory_ids"`
	StrategyUsed      ConsolidationStrategy `json:"strategy_used"`
	QualityScore      float64               `json:"quality_score"`
	CreatedAt         time.Time             `json:"created_at"`
}

// ConsolidationPreview is the non-destructive dry run of a consolidation:
// identical merge logic, nothing written.
type ConsolidationPreview struct {
	GroupID           string                `json:"group_id"`
	Title             string                `json:"title"`
	Content           string                `json:"content"`
	Tags              []string              `json:"tags,omitempty"`
	Metadata          map[string]any        `json:"metadata,omitempty"`
	OriginalMemoryIDs []string              `json:"original_memory_ids"`
	Strategy          ConsolidationStrategy `json:"strategy"`
	QualityScore      float64               `json:"quality_score"`
}

// Package models defines data structures for the memdedup deduplication engine.
package models

import "time"

// Memory is the unit of knowledge the engine deduplicates.
// The persistence layer owns Memory rows; the engine only reads them and the
// only record it ever writes is a new ConsolidatedMemory.
type Memory struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Embedding  []float32      `json:"embedding,omitempty"`
	Importance float64        `json:"importance"`
	Tags       []string       `json:"tags,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Active     bool           `json:"active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// HasEmbedding reports whether the memory carries an embedding vector.
func (m *Memory) HasEmbedding() bool {
	return len(m.Embedding) > 0
}

// MemoryFilter narrows which memories a store returns for a deduplication run.
type MemoryFilter struct {
	// IDs restricts the result to these memories. Empty means all active memories.
	IDs []string `json:"ids,omitempty"`

	// Tags restricts the result to memories carrying at least one of these tags.
	Tags []string `json:"tags,omitempty"`

	// Limit caps the number of memories returned (0 = no cap).
	Limit int `json:"limit,omitempty"`
}

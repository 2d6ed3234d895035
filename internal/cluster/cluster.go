// Package cluster turns pairwise duplicate verdicts into duplicate groups.
// Grouping is connected components over the eligible edges; components larger
// than the configured limit are split by tightening the confidence cutoff.
// Every ordering in this package is deterministic, so the same scores always
// produce the same groups.
package cluster

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

// Edge is one eligible duplicate verdict between two memories.
type Edge struct {
	A, B       string
	Confidence float64
	// Methods lists the detection methods that contributed to the verdict.
	Methods []models.Method
	// Exact marks edges where a method reported a perfect 1.0 score.
	Exact bool
}

// chronologicalSpan is the member age spread beyond which the suggested
// strategy switches to chronological ordering.
const chronologicalSpan = 30 * 24 * time.Hour

// Cluster builds pending duplicate groups from the eligible edges.
// memories must contain every id referenced by an edge. Components that end
// up with fewer than two members (possible after splitting) are dropped.
func Cluster(memories map[string]*models.Memory, edges []Edge, maxGroupSize int) []models.DuplicateGroup {
	if len(edges) == 0 {
		return nil
	}

	// Deterministic edge order: confidence desc, then ids.
	sorted := make([]Edge, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		if sorted[i].A != sorted[j].A {
			return sorted[i].A < sorted[j].A
		}
		return sorted[i].B < sorted[j].B
	})

	var groups []models.DuplicateGroup
	for _, members := range split(sorted, edgeEndpoints(sorted), maxGroupSize) {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, buildGroup(memories, members, sorted))
	}
	return groups
}

// split partitions the ids into components no larger than maxGroupSize.
// Oversized components are re-clustered with progressively higher confidence
// cutoffs, keeping only the strongest edges. When tightening cannot break a
// component apart (all edges equal), it is chunked by sorted member order so
// the size limit still holds.
func split(edges []Edge, ids []string, maxGroupSize int) [][]string {
	uf := newUnionFind(ids)
	for _, e := range edges {
		uf.union(e.A, e.B)
	}

	var out [][]string
	for _, members := range uf.components() {
		if maxGroupSize < 2 || len(members) <= maxGroupSize {
			out = append(out, members)
			continue
		}
		out = append(out, splitComponent(edges, members, maxGroupSize)...)
	}
	sortComponents(out)
	return out
}

func splitComponent(edges []Edge, members []string, maxGroupSize int) [][]string {
	inside := make(map[string]bool, len(members))
	for _, id := range members {
		inside[id] = true
	}

	internal := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if inside[e.A] && inside[e.B] {
			internal = append(internal, e)
		}
	}

	// Distinct confidences ascending: each is a candidate cutoff.
	cutoffs := distinctConfidences(internal)

	for _, cutoff := range cutoffs {
		kept := internal[:0:0]
		for _, e := range internal {
			if e.Confidence > cutoff {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			break
		}

		parts := split(kept, members, maxGroupSize)
		if allWithin(parts, maxGroupSize) && len(parts) > 1 {
			return parts
		}
	}

	// Uniform confidences: fall back to deterministic chunking.
	return chunk(members, maxGroupSize)
}

func distinctConfidences(edges []Edge) []float64 {
	seen := make(map[float64]bool, len(edges))
	var out []float64
	for _, e := range edges {
		if !seen[e.Confidence] {
			seen[e.Confidence] = true
			out = append(out, e.Confidence)
		}
	}
	sort.Float64s(out)
	return out
}

func allWithin(parts [][]string, max int) bool {
	for _, p := range parts {
		if len(p) > max {
			return false
		}
	}
	return true
}

func chunk(members []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(members); start += size {
		end := start + size
		if end > len(members) {
			end = len(members)
		}
		out = append(out, members[start:end])
	}
	return out
}

// buildGroup assembles the group record: representative, mean confidence,
// advisory tags/entities, and the suggested strategy.
func buildGroup(memories map[string]*models.Memory, members []string, edges []Edge) models.DuplicateGroup {
	inside := make(map[string]bool, len(members))
	for _, id := range members {
		inside[id] = true
	}

	var (
		confidenceSum float64
		edgeCount     int
		allExact      = true
		methodSet     = map[models.Method]bool{}
	)
	for _, e := range edges {
		if !inside[e.A] || !inside[e.B] {
			continue
		}
		confidenceSum += e.Confidence
		edgeCount++
		if !e.Exact {
			allExact = false
		}
		for _, m := range e.Methods {
			methodSet[m] = true
		}
	}

	confidence := 0.0
	if edgeCount > 0 {
		confidence = confidenceSum / float64(edgeCount)
	}
	if allExact && edgeCount > 0 {
		confidence = 1.0
	}

	group := models.DuplicateGroup{
		ID:             uuid.NewString(),
		MemberIDs:      members,
		Primary:        Representative(memories, members),
		Confidence:     confidence,
		Status:         models.GroupStatusPending,
		CommonTags:     commonTags(memories, members),
		CommonEntities: commonEntities(memories, members),
		CreatedAt:      time.Now().UTC(),
	}

	for _, m := range models.Methods() {
		if methodSet[m] {
			group.Methods = append(group.Methods, m)
		}
	}
	group.SuggestedStrategy = suggestStrategy(memories, group, allExact && edgeCount > 0)
	return group
}

// Representative picks the canonical member: highest importance, then oldest
// created_at, then smallest id. The ordering is total, so the pick is unique.
func Representative(memories map[string]*models.Memory, members []string) string {
	best := ""
	for _, id := range members {
		if best == "" {
			best = id
			continue
		}
		a, b := memories[id], memories[best]
		if a == nil {
			continue
		}
		if b == nil || beats(a, b) {
			best = id
		}
	}
	return best
}

func beats(a, b *models.Memory) bool {
	if a.Importance != b.Importance {
		return a.Importance > b.Importance
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func suggestStrategy(memories map[string]*models.Memory, group models.DuplicateGroup, allExact bool) models.ConsolidationStrategy {
	if allExact {
		return models.StrategyMergeSimilar
	}
	if len(group.CommonTags) > 0 {
		return models.StrategyTopicBased
	}
	if createdSpan(memories, group.MemberIDs) > chronologicalSpan {
		return models.StrategyChronological
	}
	return models.StrategyMergeSimilar
}

func createdSpan(memories map[string]*models.Memory, members []string) time.Duration {
	var oldest, newest time.Time
	for _, id := range members {
		m := memories[id]
		if m == nil {
			continue
		}
		if oldest.IsZero() || m.CreatedAt.Before(oldest) {
			oldest = m.CreatedAt
		}
		if newest.IsZero() || m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
	}
	if oldest.IsZero() {
		return 0
	}
	return newest.Sub(oldest)
}

// commonTags is the sorted intersection of member tag sets.
func commonTags(memories map[string]*models.Memory, members []string) []string {
	return intersect(memories, members, func(m *models.Memory) []string {
		return m.Tags
	})
}

// commonEntities is the sorted intersection of metadata["entities"] values.
func commonEntities(memories map[string]*models.Memory, members []string) []string {
	return intersect(memories, members, entityList)
}

// entityList reads metadata["entities"] tolerating both []string and the
// []any the JSON/CBOR decoders produce.
func entityList(m *models.Memory) []string {
	raw, ok := m.Metadata["entities"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func intersect(memories map[string]*models.Memory, members []string, extract func(*models.Memory) []string) []string {
	var common map[string]bool
	for _, id := range members {
		m := memories[id]
		if m == nil {
			return nil
		}
		values := extract(m)
		if len(values) == 0 {
			return nil
		}
		set := make(map[string]bool, len(values))
		for _, v := range values {
			set[v] = true
		}
		if common == nil {
			common = set
			continue
		}
		for v := range common {
			if !set[v] {
				delete(common, v)
			}
		}
		if len(common) == 0 {
			return nil
		}
	}

	out := make([]string, 0, len(common))
	for v := range common {
		out = append(out, v)
	}
	sortStrings(out)
	return out
}

func edgeEndpoints(edges []Edge) []string {
	seen := make(map[string]bool, len(edges)*2)
	var ids []string
	for _, e := range edges {
		if !seen[e.A] {
			seen[e.A] = true
			ids = append(ids, e.A)
		}
		if !seen[e.B] {
			seen[e.B] = true
			ids = append(ids, e.B)
		}
	}
	sortStrings(ids)
	return ids
}

func sortStrings(s []string) {
	sort.Strings(s)
}

// sortComponents orders member slices by their first (smallest) member.
func sortComponents(components [][]string) {
	sort.Slice(components, func(i, j int) bool {
		return components[i][0] < components[j][0]
	})
}

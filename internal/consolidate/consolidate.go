// Package consolidate merges the members of an approved duplicate group into
// a single consolidated record. Strategies differ only in how member content
// fragments are arranged; lineage, tag union, and quality scoring are shared.
package consolidate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/memdedup-go/internal/detector"
	"github.com/raphaelgruber/memdedup-go/internal/models"
)

var (
	// ErrEmptyGroup is returned when a group resolves to fewer than two
	// loadable members.
	ErrEmptyGroup = errors.New("consolidation group has fewer than two members")

	// ErrUnsupportedStrategy is returned for a strategy name outside the
	// known set.
	ErrUnsupportedStrategy = errors.New("unsupported consolidation strategy")
)

// MetadataError reports a strategy that required member metadata which no
// member carries. Strategies degrade instead of failing, so this error only
// surfaces when degradation is disabled.
type MetadataError struct {
	Strategy models.ConsolidationStrategy
	Missing  string
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("strategy %s requires %s metadata on at least one member", e.Strategy, e.Missing)
}

const (
	titleLimit   = 80
	degradedKey  = "degraded_from"
	strategyKey  = "strategy"
	lineageKey   = "source_count"
	entitiesKey  = "entities"
	topicsOther  = "general"
	qualityConfW = 0.6
	qualityLenW  = 0.4
)

// Consolidator merges duplicate groups. Safe for concurrent use.
type Consolidator struct {
	// StrictMetadata turns strategy degradation into a MetadataError instead
	// of silently falling back to merge_similar.
	StrictMetadata bool
}

// New creates a Consolidator with degradation enabled.
func New() *Consolidator {
	return &Consolidator{}
}

// Consolidate merges the group's members using the given strategy and
// returns the new record. members must be the group's resolved memories;
// order does not matter. Nothing is persisted here.
func (c *Consolidator) Consolidate(
	group *models.DuplicateGroup,
	members []*models.Memory,
	strategy models.ConsolidationStrategy,
) (*models.ConsolidatedMemory, error) {
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, strategy)
	}
	if len(members) < 2 {
		return nil, ErrEmptyGroup
	}

	rep := representative(group, members)
	effective, degraded := c.resolveStrategy(strategy, members)
	if degraded && c.StrictMetadata {
		return nil, &MetadataError{Strategy: strategy, Missing: requiredSignal(strategy)}
	}

	content, err := c.merge(effective, rep, members)
	if err != nil {
		return nil, err
	}

	out := &models.ConsolidatedMemory{
		ID:                uuid.NewString(),
		Title:             title(rep),
		Content:           content,
		Tags:              tagUnion(members),
		Metadata:          map[string]any{strategyKey: string(effective), lineageKey: len(members)},
		Importance:        maxImportance(members),
		OriginalMemoryIDs: lineage(members),
		StrategyUsed:      effective,
		QualityScore:      quality(group.Confidence, content, members),
		CreatedAt:         time.Now().UTC(),
	}
	if degraded {
		out.Metadata[degradedKey] = string(strategy)
	}
	return out, nil
}

// Preview runs the identical merge logic and returns the would-be result
// without creating a record.
func (c *Consolidator) Preview(
	group *models.DuplicateGroup,
	members []*models.Memory,
	strategy models.ConsolidationStrategy,
) (*models.ConsolidationPreview, error) {
	merged, err := c.Consolidate(group, members, strategy)
	if err != nil {
		return nil, err
	}
	return &models.ConsolidationPreview{
		GroupID:           group.ID,
		Title:             merged.Title,
		Content:           merged.Content,
		Tags:              merged.Tags,
		Metadata:          merged.Metadata,
		OriginalMemoryIDs: merged.OriginalMemoryIDs,
		Strategy:          merged.StrategyUsed,
		QualityScore:      merged.QualityScore,
	}, nil
}

// resolveStrategy degrades metadata-dependent strategies to merge_similar
// when no member carries the required signal.
func (c *Consolidator) resolveStrategy(
	strategy models.ConsolidationStrategy,
	members []*models.Memory,
) (models.ConsolidationStrategy, bool) {
	switch strategy {
	case models.StrategyTopicBased:
		for _, m := range members {
			if len(m.Tags) > 0 {
				return strategy, false
			}
		}
		return models.StrategyMergeSimilar, true
	case models.StrategyEntityFocused:
		for _, m := range members {
			if len(memoryEntities(m)) > 0 {
				return strategy, false
			}
		}
		return models.StrategyMergeSimilar, true
	}
	return strategy, false
}

func requiredSignal(strategy models.ConsolidationStrategy) string {
	if strategy == models.StrategyEntityFocused {
		return entitiesKey
	}
	return "tags"
}

func (c *Consolidator) merge(
	strategy models.ConsolidationStrategy,
	rep *models.Memory,
	members []*models.Memory,
) (string, error) {
	switch strategy {
	case models.StrategyMergeSimilar:
		return mergeSimilar(rep, members), nil
	case models.StrategyChronological:
		return mergeChronological(members), nil
	case models.StrategyTopicBased:
		return mergeKeyed(rep, members, func(m *models.Memory) []string { return m.Tags }), nil
	case models.StrategyEntityFocused:
		return mergeKeyed(rep, members, memoryEntities), nil
	case models.StrategyHierarchical:
		return mergeHierarchical(rep, members), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedStrategy, strategy)
}

// mergeSimilar keeps the representative's content first and appends the
// fragments of the other members that add anything new.
func mergeSimilar(rep *models.Memory, members []*models.Memory) string {
	seen := map[string]bool{}
	var parts []string

	add := func(content string) {
		for _, frag := range fragments(content) {
			key := detector.Normalize(frag)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			parts = append(parts, frag)
		}
	}

	add(rep.Content)
	for _, m := range sortedByID(members) {
		if m.ID != rep.ID {
			add(m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// mergeChronological orders whole member contents oldest first, each under a
// date heading.
func mergeChronological(members []*models.Memory) string {
	ordered := make([]*models.Memory, len(members))
	copy(ordered, members)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	seen := map[string]bool{}
	var b strings.Builder
	for _, m := range ordered {
		key := detector.Normalize(m.Content)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n%s", m.CreatedAt.Format("2006-01-02"), strings.TrimSpace(m.Content))
	}
	return b.String()
}

// mergeKeyed groups member fragments under a heading per key (tag or
// entity). A member contributes to each of its keys once; members without
// keys land under a general section.
func mergeKeyed(rep *models.Memory, members []*models.Memory, keys func(*models.Memory) []string) string {
	byKey := map[string][]string{}
	seenPerKey := map[string]map[string]bool{}

	addTo := func(key, content string) {
		if seenPerKey[key] == nil {
			seenPerKey[key] = map[string]bool{}
		}
		for _, frag := range fragments(content) {
			norm := detector.Normalize(frag)
			if norm == "" || seenPerKey[key][norm] {
				continue
			}
			seenPerKey[key][norm] = true
			byKey[key] = append(byKey[key], frag)
		}
	}

	for _, m := range sortedByID(members) {
		ks := keys(m)
		if len(ks) == 0 {
			addTo(topicsOther, m.Content)
			continue
		}
		for _, k := range ks {
			addTo(k, m.Content)
		}
	}

	ordered := make([]string, 0, len(byKey))
	for k := range byKey {
		if k != topicsOther {
			ordered = append(ordered, k)
		}
	}
	sort.Strings(ordered)
	if _, ok := byKey[topicsOther]; ok {
		ordered = append(ordered, topicsOther)
	}

	var b strings.Builder
	for _, k := range ordered {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n%s", k, strings.Join(byKey[k], "\n"))
	}
	return b.String()
}

// mergeHierarchical keeps only the representative's content as the summary
// level; the lineage ids are the pointer to the detail level.
func mergeHierarchical(rep *models.Memory, _ []*models.Memory) string {
	return strings.TrimSpace(rep.Content)
}

// fragments splits content into trimmed non-empty lines.
func fragments(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// quality scores the consolidation: group confidence blended with how much
// content the merge preserved. Preservation is measured against the largest
// member, so deduplicating identical content is not penalized but a merge
// that discards substance scores low even from a confident group.
func quality(confidence float64, merged string, members []*models.Memory) float64 {
	mergedTokens := len(strings.Fields(merged))
	largest := 0
	for _, m := range members {
		if n := len(strings.Fields(m.Content)); n > largest {
			largest = n
		}
	}

	preservation := 1.0
	if largest > 0 {
		preservation = float64(mergedTokens) / float64(largest)
		if preservation > 1 {
			preservation = 1
		}
	}
	return qualityConfW*confidence + qualityLenW*preservation
}

// representative resolves the group's primary, falling back to the first
// member by id when the primary is not among the loaded members.
func representative(group *models.DuplicateGroup, members []*models.Memory) *models.Memory {
	for _, m := range members {
		if m.ID == group.Primary {
			return m
		}
	}
	return sortedByID(members)[0]
}

func title(rep *models.Memory) string {
	first := strings.TrimSpace(rep.Content)
	if idx := strings.IndexByte(first, '\n'); idx >= 0 {
		first = strings.TrimSpace(first[:idx])
	}
	runes := []rune(first)
	if len(runes) > titleLimit {
		first = string(runes[:titleLimit])
	}
	return first
}

func tagUnion(members []*models.Memory) []string {
	set := map[string]bool{}
	for _, m := range members {
		for _, t := range m.Tags {
			set[t] = true
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func maxImportance(members []*models.Memory) float64 {
	best := 0.0
	for _, m := range members {
		if m.Importance > best {
			best = m.Importance
		}
	}
	return best
}

// lineage returns the sorted member ids. Always complete: every original is
// recoverable from the consolidated record.
func lineage(members []*models.Memory) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.ID)
	}
	sort.Strings(out)
	return out
}

func memoryEntities(m *models.Memory) []string {
	raw, ok := m.Metadata[entitiesKey]
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

func sortedByID(members []*models.Memory) []*models.Memory {
	out := make([]*models.Memory, len(members))
	copy(out, members)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

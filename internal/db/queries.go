package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

// Row types isolate SurrealDB record-id handling from the engine, which
// works with opaque string ids only.

type memoryRow struct {
	ID         surrealmodels.RecordID `json:"id"`
	Content    string                 `json:"content"`
	Embedding  []float32              `json:"embedding,omitempty"`
	Importance float64                `json:"importance"`
	Tags       []string               `json:"tags"`
	Metadata   map[string]any         `json:"metadata,omitempty"`
	Active     bool                   `json:"active"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

func (r *memoryRow) toModel() (*models.Memory, error) {
	id, err := recordIDString(r.ID)
	if err != nil {
		return nil, err
	}
	return &models.Memory{
		ID:         id,
		Content:    r.Content,
		Embedding:  r.Embedding,
		Importance: r.Importance,
		Tags:       r.Tags,
		Metadata:   r.Metadata,
		Active:     r.Active,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

type scoreRow struct {
	MemoryA    string    `json:"memory_a"`
	MemoryB    string    `json:"memory_b"`
	Method     string    `json:"method"`
	Score      float64   `json:"score"`
	ComputedAt time.Time `json:"computed_at"`
}

type groupRow struct {
	ID                surrealmodels.RecordID `json:"id"`
	MemberIDs         []string               `json:"member_ids"`
	PrimaryID         string                 `json:"primary_id"`
	Confidence        float64                `json:"confidence"`
	Status            string                 `json:"status"`
	CommonTags        []string               `json:"common_tags"`
	CommonEntities    []string               `json:"common_entities"`
	SuggestedStrategy string                 `json:"suggested_strategy"`
	DetectionMethods  []string               `json:"detection_methods"`
	CreatedAt         time.Time              `json:"created_at"`
}

func (r *groupRow) toModel() (*models.DuplicateGroup, error) {
	id, err := recordIDString(r.ID)
	if err != nil {
		return nil, err
	}
	g := &models.DuplicateGroup{
		ID:                id,
		MemberIDs:         r.MemberIDs,
		Primary:           r.PrimaryID,
		Confidence:        r.Confidence,
		Status:            models.GroupStatus(r.Status),
		CommonTags:        r.CommonTags,
		CommonEntities:    r.CommonEntities,
		SuggestedStrategy: models.ConsolidationStrategy(r.SuggestedStrategy),
		CreatedAt:         r.CreatedAt,
	}
	for _, m := range r.DetectionMethods {
		g.Methods = append(g.Methods, models.Method(m))
	}
	return g, nil
}

// recordIDString extracts the string key from a SurrealDB record id.
func recordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected record id type: %T (expected string)", id.ID)
	}
	return s, nil
}

// UpsertMemory creates or updates a memory by id. updated_at is bumped on
// every write, which is what invalidates cached similarity scores.
func (c *Client) UpsertMemory(ctx context.Context, m *models.Memory) error {
	sql := `
		UPSERT type::record("memory", $id) SET
			content = $content,
			embedding = $embedding,
			importance = $importance,
			tags = $tags,
			metadata = $metadata,
			active = $active,
			created_at = created_at ?? time::now(),
			updated_at = time::now()
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":         m.ID,
		"content":    m.Content,
		"embedding":  m.Embedding,
		"importance": m.Importance,
		"tags":       emptyIfNil(m.Tags),
		"metadata":   m.Metadata,
		"active":     m.Active,
	})
	if err != nil {
		return fmt.Errorf("upsert memory: %w", wrapQueryError(err))
	}
	return nil
}

// SetMemoryEmbedding attaches an embedding without touching updated_at:
// the content did not change, so cached scores stay valid and only the
// semantic detector gains signal.
func (c *Client) SetMemoryEmbedding(ctx context.Context, id string, embedding []float32) error {
	sql := `UPDATE type::record("memory", $id) SET embedding = $embedding`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":        id,
		"embedding": embedding,
	})
	if err != nil {
		return fmt.Errorf("set memory embedding: %w", wrapQueryError(err))
	}
	return nil
}

// ListActiveMemories returns active memories, optionally narrowed by tags
// or an explicit id list.
func (c *Client) ListActiveMemories(ctx context.Context, filter models.MemoryFilter) ([]*models.Memory, error) {
	sql := `SELECT * FROM memory WHERE active = true`
	vars := map[string]any{}
	if len(filter.IDs) > 0 {
		sql += ` AND record::id(id) IN $ids`
		vars["ids"] = filter.IDs
	}
	if len(filter.Tags) > 0 {
		sql += ` AND tags CONTAINSANY $tags`
		vars["tags"] = filter.Tags
	}
	sql += ` ORDER BY created_at ASC`
	if filter.Limit > 0 {
		sql += ` LIMIT $limit`
		vars["limit"] = filter.Limit
	}

	results, err := surrealdb.Query[[]memoryRow](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", wrapQueryError(err))
	}

	var out []*models.Memory
	for i := range first(results) {
		m, err := first(results)[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ListMemoriesMissingEmbedding returns active memories without a vector,
// for the embedding backfill.
func (c *Client) ListMemoriesMissingEmbedding(ctx context.Context) ([]*models.Memory, error) {
	sql := `
		SELECT * FROM memory
		WHERE active = true AND (embedding IS NONE OR array::len(embedding) = 0)
		ORDER BY created_at ASC
	`
	results, err := surrealdb.Query[[]memoryRow](ctx, c.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("list memories missing embedding: %w", wrapQueryError(err))
	}

	var out []*models.Memory
	for i := range first(results) {
		m, err := first(results)[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// GetMemory returns one memory by id, active or not.
func (c *Client) GetMemory(ctx context.Context, id string) (*models.Memory, error) {
	results, err := surrealdb.Query[[]memoryRow](ctx, c.db, `
		SELECT * FROM type::record("memory", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", wrapQueryError(err))
	}

	rows := first(results)
	if len(rows) == 0 {
		return nil, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	return rows[0].toModel()
}

// MarkMemoriesInactive deactivates the given memories. Used after an
// approved consolidation when the caller chose not to preserve originals.
// The rows stay in place: lineage must remain resolvable.
func (c *Client) MarkMemoriesInactive(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	sql := `UPDATE memory SET active = false, updated_at = time::now() WHERE record::id(id) IN $ids`
	if _, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{"ids": ids}); err != nil {
		return fmt.Errorf("mark memories inactive: %w", wrapQueryError(err))
	}
	return nil
}

// SaveScores persists similarity scores, replacing rows for the same
// (method, pair). Pair ids are already in canonical order.
func (c *Client) SaveScores(ctx context.Context, scores []models.SimilarityScore) error {
	for _, s := range scores {
		sql := `
			DELETE similarity_score WHERE method = $method AND memory_a = $a AND memory_b = $b;
			CREATE similarity_score SET
				memory_a = $a,
				memory_b = $b,
				method = $method,
				score = $score,
				computed_at = $computed_at;
		`
		_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
			"a":           s.MemoryA,
			"b":           s.MemoryB,
			"method":      string(s.Method),
			"score":       s.Score,
			"computed_at": s.ComputedAt,
		})
		if err != nil {
			return fmt.Errorf("save score %s/%s %s: %w", s.MemoryA, s.MemoryB, s.Method, wrapQueryError(err))
		}
	}
	return nil
}

// LoadScores returns all persisted similarity scores.
func (c *Client) LoadScores(ctx context.Context) ([]models.SimilarityScore, error) {
	results, err := surrealdb.Query[[]scoreRow](ctx, c.db, `SELECT * FROM similarity_score`, nil)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", wrapQueryError(err))
	}

	var out []models.SimilarityScore
	for _, r := range first(results) {
		out = append(out, models.SimilarityScore{
			MemoryA:    r.MemoryA,
			MemoryB:    r.MemoryB,
			Method:     models.Method(r.Method),
			Score:      r.Score,
			ComputedAt: r.ComputedAt,
		})
	}
	return out, nil
}

// SaveDuplicateGroup persists a new group.
func (c *Client) SaveDuplicateGroup(ctx context.Context, g *models.DuplicateGroup) error {
	methods := make([]string, 0, len(g.Methods))
	for _, m := range g.Methods {
		methods = append(methods, string(m))
	}

	sql := `
		CREATE type::record("duplicate_group", $id) SET
			member_ids = $member_ids,
			primary_id = $primary_id,
			confidence = $confidence,
			status = $status,
			common_tags = $common_tags,
			common_entities = $common_entities,
			suggested_strategy = $suggested_strategy,
			detection_methods = $detection_methods,
			created_at = $created_at
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":                 g.ID,
		"member_ids":         g.MemberIDs,
		"primary_id":         g.Primary,
		"confidence":         g.Confidence,
		"status":             string(g.Status),
		"common_tags":        emptyIfNil(g.CommonTags),
		"common_entities":    emptyIfNil(g.CommonEntities),
		"suggested_strategy": string(g.SuggestedStrategy),
		"detection_methods":  methods,
		"created_at":         g.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("save duplicate group: %w", wrapQueryError(err))
	}
	return nil
}

// GetDuplicateGroup returns one group by id.
func (c *Client) GetDuplicateGroup(ctx context.Context, id string) (*models.DuplicateGroup, error) {
	results, err := surrealdb.Query[[]groupRow](ctx, c.db, `
		SELECT * FROM type::record("duplicate_group", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get duplicate group: %w", wrapQueryError(err))
	}

	rows := first(results)
	if len(rows) == 0 {
		return nil, fmt.Errorf("duplicate group %s: %w", id, ErrNotFound)
	}
	return rows[0].toModel()
}

// ListDuplicateGroups returns groups newest first, optionally filtered by
// status (empty means all).
func (c *Client) ListDuplicateGroups(ctx context.Context, status models.GroupStatus) ([]*models.DuplicateGroup, error) {
	sql := `SELECT * FROM duplicate_group`
	vars := map[string]any{}
	if status != "" {
		sql += ` WHERE status = $status`
		vars["status"] = string(status)
	}
	sql += ` ORDER BY created_at DESC`

	results, err := surrealdb.Query[[]groupRow](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list duplicate groups: %w", wrapQueryError(err))
	}

	var out []*models.DuplicateGroup
	for i := range first(results) {
		g, err := first(results)[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// UpdateGroupStatus transitions a group from one status to another. The
// update is conditional on the current status, so a second approval of the
// same group fails with ErrConflict instead of double-writing.
func (c *Client) UpdateGroupStatus(ctx context.Context, id string, from, to models.GroupStatus) error {
	sql := `
		UPDATE type::record("duplicate_group", $id)
			SET status = $to
			WHERE status = $from
			RETURN AFTER
	`
	results, err := surrealdb.Query[[]groupRow](ctx, c.db, sql, map[string]any{
		"id":   id,
		"from": string(from),
		"to":   string(to),
	})
	if err != nil {
		return fmt.Errorf("update group status: %w", wrapQueryError(err))
	}
	if len(first(results)) == 0 {
		// Either the group does not exist or it is not in the from status.
		if _, err := c.GetDuplicateGroup(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("group %s is not %s: %w", id, from, ErrConflict)
	}
	return nil
}

// SaveConsolidatedMemory persists the merged record.
func (c *Client) SaveConsolidatedMemory(ctx context.Context, m *models.ConsolidatedMemory) error {
	sql := `
		CREATE type::record("consolidated_memory", $id) SET
			title = $title,
			content = $content,
			tags = $tags,
			metadata = $metadata,
			importance = $importance,
			original_memory_ids = $original_memory_ids,
			strategy_used = $strategy_used,
			quality_score = $quality_score,
			created_at = $created_at
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":                  m.ID,
		"title":               m.Title,
		"content":             m.Content,
		"tags":                emptyIfNil(m.Tags),
		"metadata":            m.Metadata,
		"importance":          m.Importance,
		"original_memory_ids": m.OriginalMemoryIDs,
		"strategy_used":       string(m.StrategyUsed),
		"quality_score":       m.QualityScore,
		"created_at":          m.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("save consolidated memory: %w", wrapQueryError(err))
	}
	return nil
}

type consolidatedRow struct {
	ID                surrealmodels.RecordID `json:"id"`
	Title             string                 `json:"title"`
	Content           string                 `json:"content"`
	Tags              []string               `json:"tags"`
	Metadata          map[string]any         `json:"metadata,omitempty"`
	Importance        float64                `json:"importance"`
	OriginalMemoryIDs []string               `json:"original_memory_ids"`
	StrategyUsed      string                 `json:"strategy_used"`
	QualityScore      float64                `json:"quality_score"`
	CreatedAt         time.Time              `json:"created_at"`
}

// ListConsolidatedMemories returns consolidated records newest first.
func (c *Client) ListConsolidatedMemories(ctx context.Context) ([]*models.ConsolidatedMemory, error) {
	results, err := surrealdb.Query[[]consolidatedRow](ctx, c.db, `
		SELECT * FROM consolidated_memory ORDER BY created_at DESC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list consolidated memories: %w", wrapQueryError(err))
	}

	var out []*models.ConsolidatedMemory
	for _, r := range first(results) {
		id, err := recordIDString(r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, &models.ConsolidatedMemory{
			ID:                id,
			Title:             r.Title,
			Content:           r.Content,
			Tags:              r.Tags,
			Metadata:          r.Metadata,
			Importance:        r.Importance,
			OriginalMemoryIDs: r.OriginalMemoryIDs,
			StrategyUsed:      models.ConsolidationStrategy(r.StrategyUsed),
			QualityScore:      r.QualityScore,
			CreatedAt:         r.CreatedAt,
		})
	}
	return out, nil
}

// Stats summarizes table counts for the stats command.
type Stats struct {
	Memories             int `json:"memories"`
	ActiveMemories       int `json:"active_memories"`
	PendingGroups        int `json:"pending_groups"`
	ConsolidatedGroups   int `json:"consolidated_groups"`
	DismissedGroups      int `json:"dismissed_groups"`
	ConsolidatedMemories int `json:"consolidated_memories"`
	PersistedScores      int `json:"persisted_scores"`
}

// GetStats returns row counts across all tables.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	sql := `
		SELECT
			(SELECT count() FROM memory GROUP ALL)[0].count ?? 0 AS memories,
			(SELECT count() FROM memory WHERE active = true GROUP ALL)[0].count ?? 0 AS active_memories,
			(SELECT count() FROM duplicate_group WHERE status = "pending" GROUP ALL)[0].count ?? 0 AS pending_groups,
			(SELECT count() FROM duplicate_group WHERE status = "consolidated" GROUP ALL)[0].count ?? 0 AS consolidated_groups,
			(SELECT count() FROM duplicate_group WHERE status = "dismissed" GROUP ALL)[0].count ?? 0 AS dismissed_groups,
			(SELECT count() FROM consolidated_memory GROUP ALL)[0].count ?? 0 AS consolidated_memories,
			(SELECT count() FROM similarity_score GROUP ALL)[0].count ?? 0 AS persisted_scores
		FROM 1
	`
	results, err := surrealdb.Query[[]Stats](ctx, c.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", wrapQueryError(err))
	}
	rows := first(results)
	if len(rows) == 0 {
		return &Stats{}, nil
	}
	return &rows[0], nil
}

// first unwraps the first statement's rows from a query result.
func first[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

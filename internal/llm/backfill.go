package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

// embeddingStore is the slice of persistence the backfill needs.
type embeddingStore interface {
	ListMemoriesMissingEmbedding(ctx context.Context) ([]*models.Memory, error)
	SetMemoryEmbedding(ctx context.Context, id string, embedding []float32) error
}

// backfillBatchSize bounds how many contents go to the provider per call.
const backfillBatchSize = 32

// BackfillEmbeddings attaches vectors to every active memory that lacks one.
// Failures on individual batches are logged and skipped: a partial backfill
// still improves semantic coverage, the rest abstains as before.
// Returns the number of memories embedded.
func BackfillEmbeddings(ctx context.Context, store embeddingStore, embedder *Embedder) (int, error) {
	missing, err := store.ListMemoriesMissingEmbedding(ctx)
	if err != nil {
		return 0, fmt.Errorf("list memories missing embedding: %w", err)
	}
	if len(missing) == 0 {
		return 0, nil
	}

	slog.Info("backfilling embeddings", "memories", len(missing), "model", embedder.Model())

	embedded := 0
	for start := 0; start < len(missing); start += backfillBatchSize {
		if err := ctx.Err(); err != nil {
			return embedded, err
		}

		end := start + backfillBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		texts := make([]string, len(batch))
		for i, m := range batch {
			texts[i] = m.Content
		}

		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			slog.Warn("embedding batch failed, skipping", "from", start, "to", end, "error", err)
			continue
		}

		for i, m := range batch {
			if err := store.SetMemoryEmbedding(ctx, m.ID, vectors[i]); err != nil {
				slog.Warn("failed to store embedding", "memory", m.ID, "error", err)
				continue
			}
			embedded++
		}
	}

	slog.Info("embedding backfill complete", "embedded", embedded, "missing", len(missing))
	return embedded, nil
}

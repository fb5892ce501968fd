package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/velstad/vault-pipeline/internal/core/domain"
	"github.com/velstad/vault-pipeline/internal/core/ports"
)

// EmbedTagsUseCase turns raw classifier tag names into persisted tags with
// cached embeddings and links them to the document, then finalizes the
// record. Every write is an idempotent upsert so a queue retry converges.
type EmbedTagsUseCase struct {
	docs     ports.DocumentStore
	tags     ports.TagStore
	embedder ports.Embedder
	metrics  ports.EmbedCacheMetrics
	logger   *slog.Logger
}

func NewEmbedTagsUseCase(
	docs ports.DocumentStore,
	tags ports.TagStore,
	embedder ports.Embedder,
	metrics ports.EmbedCacheMetrics,
	logger *slog.Logger,
) *EmbedTagsUseCase {
	return &EmbedTagsUseCase{
		docs:     docs,
		tags:     tags,
		embedder: embedder,
		metrics:  metrics,
		logger:   logger,
	}
}

func (uc *EmbedTagsUseCase) Process(ctx context.Context, payload domain.EmbedTagsPayload) error {
	if payload.DocumentID == "" || payload.TeamID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "embed document tags", fmt.Errorf("incomplete payload: doc=%q team=%q", payload.DocumentID, payload.TeamID))
	}

	seeds := domain.TagSeeds(payload.Tags)
	if len(seeds) == 0 {
		uc.logger.Warn("embed job carried no usable tags, finalizing document",
			"documentId", payload.DocumentID, "teamId", payload.TeamID)
		return uc.finalize(ctx, payload)
	}

	misses, err := uc.embedMissing(ctx, seeds)
	if err != nil {
		return err
	}

	rows, err := uc.tags.UpsertTags(ctx, payload.TeamID, seeds)
	if err != nil {
		return fmt.Errorf("upsert tags for %s: %w", payload.DocumentID, err)
	}
	if len(rows) == 0 {
		// Should be unreachable with a non-empty seed list; nothing
		// destructive to do, so log and move on.
		uc.logger.Warn("tag upsert returned no rows, skipping assignment",
			"documentId", payload.DocumentID, "teamId", payload.TeamID, "tags", len(seeds))
		return uc.finalize(ctx, payload)
	}

	ids := make([]string, 0, len(rows))
	for _, tag := range rows {
		ids = append(ids, tag.ID)
	}
	if err := uc.tags.UpsertAssignments(ctx, payload.TeamID, payload.DocumentID, ids); err != nil {
		return fmt.Errorf("assign tags to %s: %w", payload.DocumentID, err)
	}

	uc.logger.Info("document tags embedded and assigned",
		"documentId", payload.DocumentID, "tags", len(rows), "embedded", misses)
	return uc.finalize(ctx, payload)
}

// embedMissing batch-embeds only the slugs without a cached vector and
// returns how many it embedded. One request for N tags, never N requests.
func (uc *EmbedTagsUseCase) embedMissing(ctx context.Context, seeds []domain.TagSeed) (int, error) {
	slugs := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		slugs = append(slugs, seed.Slug)
	}

	have, err := uc.tags.EmbeddedSlugs(ctx, slugs)
	if err != nil {
		return 0, fmt.Errorf("look up cached embeddings: %w", err)
	}

	var misses []domain.TagSeed
	for _, seed := range seeds {
		if _, ok := have[seed.Slug]; !ok {
			misses = append(misses, seed)
		}
	}
	uc.metrics.EmbedCacheHit(len(seeds) - len(misses))
	uc.metrics.EmbedCacheMiss(len(misses))

	if len(misses) == 0 {
		return 0, nil
	}

	names := make([]string, 0, len(misses))
	for _, seed := range misses {
		names = append(names, seed.Name)
	}
	batch, err := uc.embedder.EmbedMany(ctx, names)
	if err != nil {
		return 0, fmt.Errorf("embed %d tag names: %w", len(names), err)
	}
	if len(batch.Vectors) != len(names) {
		return 0, domain.WrapError(
			domain.ErrInvalidInput,
			"embed tag names",
			fmt.Errorf("vectors/names mismatch: %d/%d", len(batch.Vectors), len(names)),
		)
	}

	embeddings := make([]domain.TagEmbedding, 0, len(misses))
	for i, seed := range misses {
		embeddings = append(embeddings, domain.TagEmbedding{
			Slug:      seed.Slug,
			Name:      seed.Name,
			Embedding: batch.Vectors[i],
			Model:     batch.Model,
		})
	}
	if err := uc.tags.UpsertEmbeddings(ctx, embeddings); err != nil {
		return 0, fmt.Errorf("store tag embeddings: %w", err)
	}
	return len(misses), nil
}

func (uc *EmbedTagsUseCase) finalize(ctx context.Context, payload domain.EmbedTagsPayload) error {
	if err := uc.docs.SetStatusByID(ctx, payload.TeamID, payload.DocumentID, domain.StatusCompleted); err != nil {
		return fmt.Errorf("finalize document %s: %w", payload.DocumentID, err)
	}
	return nil
}

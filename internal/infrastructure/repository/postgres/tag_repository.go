package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/velstad/vault-pipeline/internal/core/domain"
)

type TagRepository struct {
	db *sql.DB
}

func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082902)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS tags (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	team_id TEXT NOT NULL,
	name TEXT NOT NULL,
	slug TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (team_id, slug)
);

CREATE TABLE IF NOT EXISTS tag_embeddings (
	slug TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	embedding JSONB NOT NULL,
	model TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS document_tags (
	document_id UUID NOT NULL,
	tag_id UUID NOT NULL,
	team_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (document_id, tag_id)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// EmbeddedSlugs returns which of the given slugs already have a cached
// embedding. The cache is global: a slug embedded for one team is a hit
// for every team.
func (r *TagRepository) EmbeddedSlugs(ctx context.Context, slugs []string) (map[string]struct{}, error) {
	if len(slugs) == 0 {
		return map[string]struct{}{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT slug FROM tag_embeddings WHERE slug = ANY($1)
`, slugs)
	if err != nil {
		return nil, fmt.Errorf("select embedded slugs: %w", err)
	}
	defer rows.Close()

	have := make(map[string]struct{}, len(slugs))
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan embedded slug: %w", err)
		}
		have[slug] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embedded slugs: %w", err)
	}
	return have, nil
}

// UpsertEmbeddings creates cache rows for new slugs. DO NOTHING on conflict:
// concurrent creators converge on one winner, the embedding is a pure
// function of the tag name so whichever row landed first is correct.
func (r *TagRepository) UpsertEmbeddings(ctx context.Context, embeddings []domain.TagEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin embeddings tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, emb := range embeddings {
		vectorJSON, err := json.Marshal(emb.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding for %s: %w", emb.Slug, err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO tag_embeddings (slug, name, embedding, model)
VALUES ($1, $2, $3, $4)
ON CONFLICT (slug) DO NOTHING
`, emb.Slug, emb.Name, vectorJSON, emb.Model); err != nil {
			return fmt.Errorf("upsert embedding %s: %w", emb.Slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit embeddings tx: %w", err)
	}
	return nil
}

// UpsertTags upserts team-scoped tags keyed by (team_id, slug) and returns
// the resulting rows with ids. DO UPDATE keeps the display name current
// while making re-runs converge instead of duplicating.
func (r *TagRepository) UpsertTags(ctx context.Context, teamID string, seeds []domain.TagSeed) ([]domain.Tag, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tags tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	tags := make([]domain.Tag, 0, len(seeds))
	for _, seed := range seeds {
		row := tx.QueryRowContext(ctx, `
INSERT INTO tags (team_id, name, slug)
VALUES ($1, $2, $3)
ON CONFLICT (team_id, slug) DO UPDATE SET name = EXCLUDED.name
RETURNING id
`, teamID, seed.Name, seed.Slug)

		var id string
		if err := row.Scan(&id); err != nil {
			return nil, fmt.Errorf("upsert tag %s: %w", seed.Slug, err)
		}
		tags = append(tags, domain.Tag{ID: id, TeamID: teamID, Name: seed.Name, Slug: seed.Slug})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tags tx: %w", err)
	}
	return tags, nil
}

// UpsertAssignments links a document to its tags. Re-assigning an existing
// pair is a no-op, not an error.
func (r *TagRepository) UpsertAssignments(ctx context.Context, teamID, documentID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignments tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO document_tags (document_id, tag_id, team_id, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (document_id, tag_id) DO NOTHING
`, documentID, tagID, teamID, now); err != nil {
			return fmt.Errorf("upsert assignment %s->%s: %w", documentID, tagID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignments tx: %w", err)
	}
	return nil
}

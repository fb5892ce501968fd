package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/velstad/vault-pipeline/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	team_id TEXT NOT NULL,
	path_tokens JSONB NOT NULL,
	title TEXT,
	summary TEXT,
	content TEXT,
	doc_date TEXT,
	language TEXT,
	processing_status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_team_path ON documents(team_id, path_tokens);
CREATE INDEX IF NOT EXISTS idx_documents_status_created ON documents(processing_status, created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// UpdateClassificationByPath writes the classification fields onto the row
// addressed by (team_id, path_tokens). Zero matching rows means the
// document disappeared or the path is wrong; that is fatal, never ignored.
func (r *DocumentRepository) UpdateClassificationByPath(ctx context.Context, upd domain.ClassificationUpdate) (domain.DocumentRef, error) {
	pathJSON, err := json.Marshal(upd.PathTokens)
	if err != nil {
		return domain.DocumentRef{}, fmt.Errorf("marshal path tokens: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
UPDATE documents
SET title = $3, summary = $4, content = $5, doc_date = $6, language = $7, processing_status = $8, updated_at = $9
WHERE team_id = $1 AND path_tokens = $2
RETURNING id
`,
		upd.TeamID, pathJSON, upd.Title, upd.Summary, upd.Content, upd.Date, upd.Language,
		string(upd.Status), time.Now().UTC(),
	)

	var ref domain.DocumentRef
	if err := row.Scan(&ref.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DocumentRef{}, domain.WrapError(domain.ErrDocumentNotFound, "update classification by path", err)
		}
		return domain.DocumentRef{}, fmt.Errorf("update classification by path: %w", err)
	}
	if ref.ID == "" {
		return domain.DocumentRef{}, domain.WrapError(domain.ErrInvalidInput, "update classification by path", errors.New("updated row returned empty id"))
	}
	return ref, nil
}

func (r *DocumentRepository) UpdateStatusByPath(ctx context.Context, teamID string, pathTokens []string, status domain.ProcessingStatus) error {
	pathJSON, err := json.Marshal(pathTokens)
	if err != nil {
		return fmt.Errorf("marshal path tokens: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET processing_status = $3, updated_at = $4
WHERE team_id = $1 AND path_tokens = $2
`, teamID, pathJSON, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status by path: %w", err)
	}
	return requireRows(res, "update document status by path")
}

func (r *DocumentRepository) SetStatusByID(ctx context.Context, teamID, documentID string, status domain.ProcessingStatus) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET processing_status = $3, updated_at = $4
WHERE team_id = $1 AND id = $2
`, teamID, documentID, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status by id: %w", err)
	}
	return requireRows(res, "update document status by id")
}

// FindStale returns ids of records still mid-pipeline past olderThan,
// bounded so one sweep cannot overwhelm the database.
func (r *DocumentRepository) FindStale(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id
FROM documents
WHERE processing_status IN ('pending', 'classified') AND created_at < $1
ORDER BY created_at
LIMIT $2
`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("select stale documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale documents: %w", err)
	}
	return ids, nil
}

// MarkStaleFailed re-checks the in-pipeline predicate inside the UPDATE so
// a document that completed between select and update is not clobbered.
func (r *DocumentRepository) MarkStaleFailed(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET processing_status = 'failed', updated_at = $2
WHERE id = ANY($1) AND processing_status IN ('pending', 'classified')
`, ids, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark stale documents failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale update rows affected: %w", err)
	}
	return affected, nil
}

func requireRows(res sql.Result, operation string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, sql.ErrNoRows)
	}
	return nil
}

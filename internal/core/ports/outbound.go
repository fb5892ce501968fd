package ports

import (
	"context"
	"io"
	"time"

	"github.com/velstad/vault-pipeline/internal/core/domain"
)

// DocumentStore mutates document records. All writes are narrow and
// conditionally guarded; a write that should affect a row but affects none
// returns domain.ErrDocumentNotFound.
type DocumentStore interface {
	UpdateClassificationByPath(ctx context.Context, upd domain.ClassificationUpdate) (domain.DocumentRef, error)
	UpdateStatusByPath(ctx context.Context, teamID string, pathTokens []string, status domain.ProcessingStatus) error
	SetStatusByID(ctx context.Context, teamID, documentID string, status domain.ProcessingStatus) error
	FindStale(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
	MarkStaleFailed(ctx context.Context, ids []string) (int64, error)
}

// TagStore persists tags, the global embedding cache and document
// assignments. Every upsert is idempotent.
type TagStore interface {
	EmbeddedSlugs(ctx context.Context, slugs []string) (map[string]struct{}, error)
	UpsertEmbeddings(ctx context.Context, embeddings []domain.TagEmbedding) error
	UpsertTags(ctx context.Context, teamID string, seeds []domain.TagSeed) ([]domain.Tag, error)
	UpsertAssignments(ctx context.Context, teamID, documentID string, tagIDs []string) error
}

type UploadOptions struct {
	ContentType string
	Upsert      bool
}

// BlobStorage stores the uploaded source files.
type BlobStorage interface {
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	Upload(ctx context.Context, path string, data []byte, opts UploadOptions) error
}

// DocumentLoader extracts plain text from a blob of a known mimetype.
type DocumentLoader interface {
	Load(ctx context.Context, file domain.ResolvedFile) (string, error)
}

// ImageNormalizer converts a HEIC blob to JPEG and re-uploads it in place,
// returning the converted bytes.
type ImageNormalizer interface {
	NormalizeHEIC(ctx context.Context, path string, src []byte) ([]byte, error)
}

// Classifier produces a structured classification from text or image bytes.
type Classifier interface {
	ClassifyDocument(ctx context.Context, content string) (domain.Classification, error)
	ClassifyImage(ctx context.Context, data []byte) (domain.Classification, error)
}

// Embedder builds vectors for tag names in one batched call.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) (domain.EmbeddingBatch, error)
}

// JobQueue dispatches follow-up jobs fire-and-forget; the caller never
// awaits completion of the dispatched job.
type JobQueue interface {
	Enqueue(ctx context.Context, job string, payload any, queue string) error
}

// EmbedCacheMetrics observes tag-embedding cache effectiveness.
type EmbedCacheMetrics interface {
	EmbedCacheHit(n int)
	EmbedCacheMiss(n int)
}

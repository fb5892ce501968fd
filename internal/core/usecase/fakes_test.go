package usecase

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/velstad/vault-pipeline/internal/core/domain"
	"github.com/velstad/vault-pipeline/internal/core/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type statusByPathCall struct {
	teamID string
	path   []string
	status domain.ProcessingStatus
}

type statusByIDCall struct {
	teamID     string
	documentID string
	status     domain.ProcessingStatus
}

type docStoreFake struct {
	updates        []domain.ClassificationUpdate
	updateRef      domain.DocumentRef
	updateErr      error
	statusByPath   []statusByPathCall
	statusPathErr  error
	statusByID     []statusByIDCall
	statusIDErr    error
	staleIDs       []string
	staleErr       error
	staleCutoff    time.Time
	staleLimit     int
	markedIDs      []string
	markedAffected int64
	markErr        error
}

func (f *docStoreFake) UpdateClassificationByPath(_ context.Context, upd domain.ClassificationUpdate) (domain.DocumentRef, error) {
	if f.updateErr != nil {
		return domain.DocumentRef{}, f.updateErr
	}
	f.updates = append(f.updates, upd)
	if f.updateRef.ID == "" {
		return domain.DocumentRef{ID: "doc-1"}, nil
	}
	return f.updateRef, nil
}

func (f *docStoreFake) UpdateStatusByPath(_ context.Context, teamID string, pathTokens []string, status domain.ProcessingStatus) error {
	f.statusByPath = append(f.statusByPath, statusByPathCall{teamID: teamID, path: pathTokens, status: status})
	return f.statusPathErr
}

func (f *docStoreFake) SetStatusByID(_ context.Context, teamID, documentID string, status domain.ProcessingStatus) error {
	f.statusByID = append(f.statusByID, statusByIDCall{teamID: teamID, documentID: documentID, status: status})
	return f.statusIDErr
}

func (f *docStoreFake) FindStale(_ context.Context, olderThan time.Time, limit int) ([]string, error) {
	f.staleCutoff = olderThan
	f.staleLimit = limit
	if f.staleErr != nil {
		return nil, f.staleErr
	}
	return f.staleIDs, nil
}

func (f *docStoreFake) MarkStaleFailed(_ context.Context, ids []string) (int64, error) {
	f.markedIDs = ids
	if f.markErr != nil {
		return 0, f.markErr
	}
	return f.markedAffected, nil
}

// failingReader errors partway through a read, like a storage stream cut
// mid-transfer.
type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }
func (r *failingReader) Close() error             { return nil }

type blobFake struct {
	blobs       map[string][]byte
	downloadErr error
	// failFirstRead makes the first download return a stream that dies
	// mid-read; subsequent downloads succeed.
	failFirstRead error
	downloads     int
	uploads       map[string][]byte
}

func (f *blobFake) Download(_ context.Context, path string) (io.ReadCloser, error) {
	f.downloads++
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	if f.failFirstRead != nil && f.downloads == 1 {
		return &failingReader{err: f.failFirstRead}, nil
	}
	data, ok := f.blobs[path]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *blobFake) Upload(_ context.Context, path string, data []byte, _ ports.UploadOptions) error {
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	f.uploads[path] = data
	return nil
}

type loaderFake struct {
	text  string
	err   error
	calls int
	last  domain.ResolvedFile
}

func (f *loaderFake) Load(_ context.Context, file domain.ResolvedFile) (string, error) {
	f.calls++
	f.last = file
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type normalizerFake struct {
	out   []byte
	err   error
	calls int
	path  string
}

func (f *normalizerFake) NormalizeHEIC(_ context.Context, path string, _ []byte) ([]byte, error) {
	f.calls++
	f.path = path
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

type enqueuedJob struct {
	job     string
	payload any
	queue   string
}

type queueFake struct {
	jobs      []enqueuedJob
	errByJob  map[string]error
	globalErr error
}

func (f *queueFake) Enqueue(_ context.Context, job string, payload any, queue string) error {
	if err, ok := f.errByJob[job]; ok && err != nil {
		return err
	}
	if f.globalErr != nil {
		return f.globalErr
	}
	f.jobs = append(f.jobs, enqueuedJob{job: job, payload: payload, queue: queue})
	return nil
}

func (f *queueFake) byName(job string) []enqueuedJob {
	var out []enqueuedJob
	for _, j := range f.jobs {
		if j.job == job {
			out = append(out, j)
		}
	}
	return out
}

type aiFake struct {
	docCls   domain.Classification
	docErr   error
	imgCls   domain.Classification
	imgErr   error
	docCalls int
	imgCalls int
	imgBytes []byte
}

func (f *aiFake) ClassifyDocument(context.Context, string) (domain.Classification, error) {
	f.docCalls++
	if f.docErr != nil {
		return domain.Classification{}, f.docErr
	}
	return f.docCls, nil
}

func (f *aiFake) ClassifyImage(_ context.Context, data []byte) (domain.Classification, error) {
	f.imgCalls++
	f.imgBytes = data
	if f.imgErr != nil {
		return domain.Classification{}, f.imgErr
	}
	return f.imgCls, nil
}

type tagStoreFake struct {
	cached        map[string]struct{}
	cacheErr      error
	embeddings    []domain.TagEmbedding
	embedUpsErr   error
	upsertedSeeds []domain.TagSeed
	upsertRows    []domain.Tag
	upsertErr     error
	assignedIDs   []string
	assignDocID   string
	assignErr     error
}

func (f *tagStoreFake) EmbeddedSlugs(_ context.Context, slugs []string) (map[string]struct{}, error) {
	if f.cacheErr != nil {
		return nil, f.cacheErr
	}
	have := map[string]struct{}{}
	for _, slug := range slugs {
		if _, ok := f.cached[slug]; ok {
			have[slug] = struct{}{}
		}
	}
	return have, nil
}

func (f *tagStoreFake) UpsertEmbeddings(_ context.Context, embeddings []domain.TagEmbedding) error {
	if f.embedUpsErr != nil {
		return f.embedUpsErr
	}
	f.embeddings = append(f.embeddings, embeddings...)
	if f.cached == nil {
		f.cached = map[string]struct{}{}
	}
	for _, emb := range embeddings {
		f.cached[emb.Slug] = struct{}{}
	}
	return nil
}

func (f *tagStoreFake) UpsertTags(_ context.Context, teamID string, seeds []domain.TagSeed) ([]domain.Tag, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.upsertedSeeds = seeds
	if f.upsertRows != nil {
		return f.upsertRows, nil
	}
	tags := make([]domain.Tag, 0, len(seeds))
	for i, seed := range seeds {
		tags = append(tags, domain.Tag{ID: "tag-" + string(rune('a'+i)), TeamID: teamID, Name: seed.Name, Slug: seed.Slug})
	}
	return tags, nil
}

func (f *tagStoreFake) UpsertAssignments(_ context.Context, _, documentID string, tagIDs []string) error {
	if f.assignErr != nil {
		return f.assignErr
	}
	f.assignDocID = documentID
	f.assignedIDs = tagIDs
	return nil
}

type embedderFake struct {
	batch domain.EmbeddingBatch
	err   error
	calls [][]string
}

func (f *embedderFake) EmbedMany(_ context.Context, texts []string) (domain.EmbeddingBatch, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return domain.EmbeddingBatch{}, f.err
	}
	if f.batch.Vectors != nil {
		return f.batch, nil
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i)}
	}
	return domain.EmbeddingBatch{Vectors: vectors, Model: "text-embedding-3-small"}, nil
}

type cacheMetricsFake struct {
	hits   int
	misses int
}

func (f *cacheMetricsFake) EmbedCacheHit(n int)  { f.hits += n }
func (f *cacheMetricsFake) EmbedCacheMiss(n int) { f.misses += n }

// sniffAlways returns a fixed detection outcome regardless of input.
func sniffAlways(kind domain.FileKind, detected bool) func([]byte) (domain.FileKind, bool) {
	return func([]byte) (domain.FileKind, bool) { return kind, detected }
}

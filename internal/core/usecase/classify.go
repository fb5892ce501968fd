package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/velstad/vault-pipeline/internal/core/domain"
	"github.com/velstad/vault-pipeline/internal/core/ports"
)

// ClassifyDocumentUseCase classifies a sampled text body and persists the
// result onto the document record addressed by (teamId, pathTokens).
type ClassifyDocumentUseCase struct {
	docs       ports.DocumentStore
	classifier ports.Classifier
	queue      ports.JobQueue
	logger     *slog.Logger
}

func NewClassifyDocumentUseCase(
	docs ports.DocumentStore,
	classifier ports.Classifier,
	queue ports.JobQueue,
	logger *slog.Logger,
) *ClassifyDocumentUseCase {
	return &ClassifyDocumentUseCase{
		docs:       docs,
		classifier: classifier,
		queue:      queue,
		logger:     logger,
	}
}

func (uc *ClassifyDocumentUseCase) Process(ctx context.Context, payload domain.ClassifyDocumentPayload) error {
	if payload.FileName == "" || payload.TeamID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "classify document", fmt.Errorf("incomplete payload: file=%q team=%q", payload.FileName, payload.TeamID))
	}

	cls, err := uc.classifier.ClassifyDocument(ctx, payload.Content)
	if err != nil {
		return fmt.Errorf("classify document %s: %w", payload.FileName, err)
	}

	return persistClassification(ctx, classificationDeps{
		docs:   uc.docs,
		queue:  uc.queue,
		logger: uc.logger,
	}, variantDocument, payload.FileName, payload.TeamID, payload.Content, cls)
}

// ClassifyImageUseCase downloads the (already JPEG-normalized) image and
// classifies it from raw bytes. The classifier also extracts visible text,
// which becomes the document's content.
type ClassifyImageUseCase struct {
	docs       ports.DocumentStore
	storage    ports.BlobStorage
	classifier ports.Classifier
	queue      ports.JobQueue
	logger     *slog.Logger
}

func NewClassifyImageUseCase(
	docs ports.DocumentStore,
	storage ports.BlobStorage,
	classifier ports.Classifier,
	queue ports.JobQueue,
	logger *slog.Logger,
) *ClassifyImageUseCase {
	return &ClassifyImageUseCase{
		docs:       docs,
		storage:    storage,
		classifier: classifier,
		queue:      queue,
		logger:     logger,
	}
}

func (uc *ClassifyImageUseCase) Process(ctx context.Context, payload domain.ClassifyImagePayload) error {
	if payload.FileName == "" || payload.TeamID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "classify image", fmt.Errorf("incomplete payload: file=%q team=%q", payload.FileName, payload.TeamID))
	}

	rc, err := uc.storage.Download(ctx, payload.FileName)
	if err != nil {
		return fmt.Errorf("download image %s: %w", payload.FileName, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("read image %s: %w", payload.FileName, err)
	}

	cls, err := uc.classifier.ClassifyImage(ctx, data)
	if err != nil {
		return fmt.Errorf("classify image %s: %w", payload.FileName, err)
	}

	return persistClassification(ctx, classificationDeps{
		docs:   uc.docs,
		queue:  uc.queue,
		logger: uc.logger,
	}, variantImage, payload.FileName, payload.TeamID, cls.Content, cls)
}

type classificationDeps struct {
	docs   ports.DocumentStore
	queue  ports.JobQueue
	logger *slog.Logger
}

// persistClassification writes the classifier's result onto the record and
// chains the tag-embedding stage. Completion is two-phase: a record with
// tags stays classified until the embedding stage finalizes it.
func persistClassification(ctx context.Context, deps classificationDeps, variant titleVariant, fileName, teamID, content string, cls domain.Classification) error {
	title := strings.TrimSpace(cls.Title)
	if title == "" {
		title = fallbackTitle(variant, fileName, content, cls, deps.logger)
	}

	status := domain.StatusCompleted
	if len(cls.Tags) > 0 {
		status = domain.StatusClassified
	}

	upd := domain.ClassificationUpdate{
		TeamID:     teamID,
		PathTokens: strings.Split(fileName, "/"),
		Title:      &title,
		Status:     status,
	}
	if s := strings.TrimSpace(cls.Summary); s != "" {
		upd.Summary = &s
	}
	if body := domain.TruncateWords(content, domain.MaxContentWords); body != "" {
		upd.Content = &body
	}
	if d := strings.TrimSpace(cls.Date); d != "" {
		upd.Date = &d
	}
	if cls.Language != "" {
		lang := domain.SearchLanguage(cls.Language)
		upd.Language = &lang
	}

	ref, err := deps.docs.UpdateClassificationByPath(ctx, upd)
	if err != nil {
		return fmt.Errorf("persist classification for %s: %w", fileName, err)
	}

	if len(cls.Tags) == 0 {
		deps.logger.Info("classification produced no tags, document completed",
			"documentId", ref.ID, "fileName", fileName)
		return nil
	}

	if err := deps.queue.Enqueue(ctx, domain.JobEmbedDocumentTags, domain.EmbedTagsPayload{
		DocumentID: ref.ID,
		TeamID:     teamID,
		Tags:       cls.Tags,
	}, domain.QueueDocuments); err != nil {
		return fmt.Errorf("enqueue tag embedding for %s: %w", ref.ID, err)
	}
	return nil
}

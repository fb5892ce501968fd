package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/velstad/vault-pipeline/internal/core/domain"
	"github.com/velstad/vault-pipeline/internal/core/ports"
)

// maxConvertibleHEICBytes bounds the HEIC blobs the pipeline will try to
// convert. Anything larger completes with a filename-derived title instead
// of failing the job.
const maxConvertibleHEICBytes = 15 << 20

// IngestDocumentUseCase is the pipeline entry point: it resolves the blob's
// real type, normalizes HEIC uploads, extracts text and dispatches the
// classification stage.
type IngestDocumentUseCase struct {
	docs       ports.DocumentStore
	storage    ports.BlobStorage
	loader     ports.DocumentLoader
	normalizer ports.ImageNormalizer
	sniff      func([]byte) (domain.FileKind, bool)
	queue      ports.JobQueue
	logger     *slog.Logger
}

func NewIngestDocumentUseCase(
	docs ports.DocumentStore,
	storage ports.BlobStorage,
	loader ports.DocumentLoader,
	normalizer ports.ImageNormalizer,
	sniff func([]byte) (domain.FileKind, bool),
	queue ports.JobQueue,
	logger *slog.Logger,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		docs:       docs,
		storage:    storage,
		loader:     loader,
		normalizer: normalizer,
		sniff:      sniff,
		queue:      queue,
		logger:     logger,
	}
}

// Process runs the ingest flow. A returned error means the job should be
// retried by the queue; the document record has already been marked failed.
// A nil return is terminal for this stage, whether the document moved
// forward or was completed/failed in place.
func (uc *IngestDocumentUseCase) Process(ctx context.Context, payload domain.ProcessDocumentPayload) (err error) {
	if len(payload.FilePath) == 0 || payload.TeamID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "ingest document", fmt.Errorf("incomplete payload: path=%v team=%q", payload.FilePath, payload.TeamID))
	}
	fullPath := strings.Join(payload.FilePath, "/")

	defer func() {
		if err == nil {
			return
		}
		if markErr := uc.docs.UpdateStatusByPath(ctx, payload.TeamID, payload.FilePath, domain.StatusFailed); markErr != nil {
			uc.logger.Error("failed to mark document failed",
				"path", fullPath, "teamId", payload.TeamID, "error", markErr)
		}
	}()

	uc.notify(ctx, domain.NotificationPayload{
		Type:     domain.NotificationDocumentUploaded,
		TeamID:   payload.TeamID,
		FileName: baseName(fullPath),
		FilePath: payload.FilePath,
		MimeType: payload.Mimetype,
	})

	mime := payload.Mimetype
	data, readErr := uc.download(ctx, fullPath)
	if readErr != nil {
		// A blob that downloaded but could not be read through is the
		// one I/O ambiguity sniffing cannot resolve: re-fetch once and
		// assume the most common real-world type.
		if mime != domain.MimeOctetStream {
			return fmt.Errorf("read blob %s: %w", fullPath, readErr)
		}
		uc.logger.Warn("blob read failed for untyped upload, re-downloading and assuming pdf",
			"path", fullPath, "error", readErr)
		data, err = uc.download(ctx, fullPath)
		if err != nil {
			return fmt.Errorf("re-download blob %s: %w", fullPath, err)
		}
		mime = domain.MimePDF
	}

	if domain.KindFromMime(mime) == domain.KindHEIC {
		data, mime, err = uc.normalizeHEIC(ctx, fullPath, payload, data)
		if err != nil || data == nil {
			return err
		}
	}

	if mime == domain.MimeOctetStream {
		kind, detected := uc.sniff(data)
		if !detected {
			// Unrecognizable blobs are terminal, not retryable.
			uc.logger.Warn("unrecognized file signature, marking document failed",
				"path", fullPath, "teamId", payload.TeamID, "size", len(data))
			if markErr := uc.docs.UpdateStatusByPath(ctx, payload.TeamID, payload.FilePath, domain.StatusFailed); markErr != nil {
				return fmt.Errorf("mark unrecognized document failed: %w", markErr)
			}
			return nil
		}
		mime = kind.Mime()
		uc.logger.Info("sniffed file type for untyped upload", "path", fullPath, "mimetype", mime)
	}

	file := domain.ResolveFile(mime, data)

	if file.Kind.IsImage() || strings.HasPrefix(mime, "image/") {
		if err := uc.queue.Enqueue(ctx, domain.JobClassifyImage, domain.ClassifyImagePayload{
			FileName: fullPath,
			TeamID:   payload.TeamID,
		}, domain.QueueDocuments); err != nil {
			return fmt.Errorf("enqueue image classification: %w", err)
		}
		return nil
	}

	if !domain.IsSupportedMime(mime) {
		return domain.WrapError(domain.ErrUnsupportedFile, "ingest document", fmt.Errorf("mimetype %s", mime))
	}

	text, err := uc.loader.Load(ctx, file)
	if err != nil {
		return fmt.Errorf("load document %s: %w", fullPath, err)
	}
	if strings.TrimSpace(text) == "" {
		uc.logger.Warn("document produced no text content, continuing",
			"path", fullPath, "mimetype", mime, "size", len(data))
	}

	sample := domain.ContentSample(text)
	if sample == "" {
		// Nothing to classify; the record is done as far as this
		// pipeline is concerned.
		if err := uc.docs.UpdateStatusByPath(ctx, payload.TeamID, payload.FilePath, domain.StatusCompleted); err != nil {
			return fmt.Errorf("complete empty document: %w", err)
		}
		uc.logger.Info("document completed without classification", "path", fullPath)
		return nil
	}

	if err := uc.queue.Enqueue(ctx, domain.JobClassifyDocument, domain.ClassifyDocumentPayload{
		Content:  sample,
		FileName: fullPath,
		TeamID:   payload.TeamID,
	}, domain.QueueDocuments); err != nil {
		return fmt.Errorf("enqueue document classification: %w", err)
	}

	uc.notify(ctx, domain.NotificationPayload{
		Type:     domain.NotificationDocumentProcessed,
		TeamID:   payload.TeamID,
		FileName: baseName(fullPath),
		FilePath: payload.FilePath,
		MimeType: mime,
	})
	return nil
}

// normalizeHEIC converts the blob to JPEG in place. Conversion problems
// never fail the job: oversized or unconvertible photos complete with a
// filename-derived title so the upload is still visible to the user.
// A nil data return means the flow already terminated.
func (uc *IngestDocumentUseCase) normalizeHEIC(ctx context.Context, fullPath string, payload domain.ProcessDocumentPayload, data []byte) ([]byte, string, error) {
	if len(data) > maxConvertibleHEICBytes {
		uc.logger.Warn("heic blob exceeds conversion limit, completing with fallback",
			"path", fullPath, "size", len(data), "limit", maxConvertibleHEICBytes)
		return nil, "", uc.completeWithFallback(ctx, payload, "Image too large to convert for classification.")
	}

	converted, err := uc.normalizer.NormalizeHEIC(ctx, fullPath, data)
	if err != nil {
		uc.logger.Warn("heic conversion failed, completing with fallback",
			"path", fullPath, "size", len(data), "error", err)
		return nil, "", uc.completeWithFallback(ctx, payload, "Image could not be converted for classification.")
	}

	uc.logger.Info("converted heic to jpeg", "path", fullPath, "originalSize", len(data), "convertedSize", len(converted))
	return converted, domain.MimeJPEG, nil
}

func (uc *IngestDocumentUseCase) completeWithFallback(ctx context.Context, payload domain.ProcessDocumentPayload, summary string) error {
	title := titleFromFileName(baseName(strings.Join(payload.FilePath, "/")))
	upd := domain.ClassificationUpdate{
		TeamID:     payload.TeamID,
		PathTokens: payload.FilePath,
		Title:      &title,
		Summary:    &summary,
		Status:     domain.StatusCompleted,
	}
	if _, err := uc.docs.UpdateClassificationByPath(ctx, upd); err != nil {
		return fmt.Errorf("complete document with fallback title: %w", err)
	}
	return nil
}

func (uc *IngestDocumentUseCase) download(ctx context.Context, fullPath string) ([]byte, error) {
	rc, err := uc.storage.Download(ctx, fullPath)
	if err != nil {
		return nil, fmt.Errorf("download blob: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (uc *IngestDocumentUseCase) notify(ctx context.Context, payload domain.NotificationPayload) {
	if err := uc.queue.Enqueue(ctx, domain.JobNotification, payload, domain.QueueNotifications); err != nil {
		uc.logger.Warn("notification dispatch failed",
			"type", payload.Type, "teamId", payload.TeamID, "error", err)
	}
}

func baseName(fullPath string) string {
	return path.Base(fullPath)
}

func titleFromFileName(fileName string) string {
	name := strings.TrimSuffix(fileName, path.Ext(fileName))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	name = strings.TrimSpace(name)
	if name == "" {
		return "Document"
	}
	return name
}

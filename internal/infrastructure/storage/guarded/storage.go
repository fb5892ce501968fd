// Package guarded decorates a blob storage backend with per-transfer
// deadlines. Download reads the blob to completion inside the budget, so a
// stalled open or a stream that stops producing bytes cannot hold a job
// past it.
package guarded

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/velstad/vault-pipeline/internal/core/ports"
	"github.com/velstad/vault-pipeline/internal/infrastructure/resilience"
)

type Storage struct {
	inner   ports.BlobStorage
	budgets resilience.Budgets
}

func New(inner ports.BlobStorage, budgets resilience.Budgets) *Storage {
	return &Storage{inner: inner, budgets: budgets}
}

// Download fetches and fully reads the blob within the download budget.
// The returned reader is an in-memory view already detached from the
// backend, so callers can consume it without further I/O.
func (s *Storage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	data, err := resilience.WithTimeout(ctx, s.budgets.FileDownload,
		fmt.Sprintf("file download timed out after %s", s.budgets.FileDownload),
		func(opCtx context.Context) ([]byte, error) {
			rc, err := s.inner.Download(opCtx, path)
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Storage) Upload(ctx context.Context, path string, data []byte, opts ports.UploadOptions) error {
	_, err := resilience.WithTimeout(ctx, s.budgets.FileUpload,
		fmt.Sprintf("file upload timed out after %s", s.budgets.FileUpload),
		func(opCtx context.Context) (struct{}, error) {
			return struct{}{}, s.inner.Upload(opCtx, path, data, opts)
		})
	return err
}

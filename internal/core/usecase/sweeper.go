package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/velstad/vault-pipeline/internal/core/ports"
)

const (
	defaultStaleThreshold = 10 * time.Minute
	defaultSweepBatchSize = 100
)

// SweepResult reports one sweeper run for observability.
type SweepResult struct {
	StaleDocumentsFound   int
	DocumentsMarkedFailed int64
}

// SweeperUseCase is the pipeline's backstop: documents stuck mid-pipeline
// past the threshold (crashed worker, lost job) are moved to failed so
// stuck records never accumulate invisibly.
type SweeperUseCase struct {
	docs      ports.DocumentStore
	threshold time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewSweeperUseCase(docs ports.DocumentStore, threshold time.Duration, batchSize int, logger *slog.Logger) *SweeperUseCase {
	if threshold <= 0 {
		threshold = defaultStaleThreshold
	}
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &SweeperUseCase{
		docs:      docs,
		threshold: threshold,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Sweep runs one pass. Query failures are logged and returned so the
// caller's schedule retries them.
func (uc *SweeperUseCase) Sweep(ctx context.Context) (SweepResult, error) {
	cutoff := time.Now().Add(-uc.threshold)

	ids, err := uc.docs.FindStale(ctx, cutoff, uc.batchSize)
	if err != nil {
		uc.logger.Error("stale document query failed", "error", err)
		return SweepResult{}, fmt.Errorf("find stale documents: %w", err)
	}
	if len(ids) == 0 {
		return SweepResult{}, nil
	}

	marked, err := uc.docs.MarkStaleFailed(ctx, ids)
	if err != nil {
		uc.logger.Error("stale document update failed", "found", len(ids), "error", err)
		return SweepResult{StaleDocumentsFound: len(ids)}, fmt.Errorf("mark stale documents failed: %w", err)
	}

	uc.logger.Warn("swept stale documents",
		"found", len(ids), "markedFailed", marked, "olderThan", uc.threshold)
	return SweepResult{StaleDocumentsFound: len(ids), DocumentsMarkedFailed: marked}, nil
}

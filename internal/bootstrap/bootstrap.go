package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/velstad/vault-pipeline/internal/config"
	"github.com/velstad/vault-pipeline/internal/core/domain"
	"github.com/velstad/vault-pipeline/internal/core/usecase"
	openaiclient "github.com/velstad/vault-pipeline/internal/infrastructure/ai/openai"
	"github.com/velstad/vault-pipeline/internal/infrastructure/filesniff"
	"github.com/velstad/vault-pipeline/internal/infrastructure/imaging"
	"github.com/velstad/vault-pipeline/internal/infrastructure/loader"
	natsqueue "github.com/velstad/vault-pipeline/internal/infrastructure/queue/nats"
	"github.com/velstad/vault-pipeline/internal/infrastructure/repository/postgres"
	"github.com/velstad/vault-pipeline/internal/infrastructure/resilience"
	"github.com/velstad/vault-pipeline/internal/infrastructure/storage/guarded"
	"github.com/velstad/vault-pipeline/internal/infrastructure/storage/localfs"
	"github.com/velstad/vault-pipeline/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Queue   *natsqueue.Queue
	Metrics *metrics.WorkerMetrics

	IngestUC        *usecase.IngestDocumentUseCase
	ClassifyDocUC   *usecase.ClassifyDocumentUseCase
	ClassifyImageUC *usecase.ClassifyImageUseCase
	EmbedTagsUC     *usecase.EmbedTagsUseCase
	SweeperUC       *usecase.SweeperUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	docs := postgres.NewDocumentRepository(db)
	if err := docs.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure document schema: %w", err)
	}
	tags := postgres.NewTagRepository(db)
	if err := tags.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure tag schema: %w", err)
	}

	backend, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init blob storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	budgets := resilience.Budgets{
		FileDownload:     cfg.FileDownloadTimeout,
		FileUpload:       cfg.FileUploadTimeout,
		DocumentParse:    cfg.DocumentParseTimeout,
		AIClassification: cfg.ClassifyTimeout,
		Embedding:        cfg.EmbedTimeout,
	}
	storage := guarded.New(backend, budgets)

	queue, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubjectPrefix, natsqueue.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init job queue: %w", err)
	}

	ai := openaiclient.New(openaiclient.Config{
		APIKey:            cfg.OpenAIAPIKey,
		BaseURL:           cfg.OpenAIBaseURL,
		ChatModel:         cfg.OpenAIChatModel,
		EmbedModel:        cfg.OpenAIEmbedModel,
		RequestsPerSecond: float64(cfg.OpenAIRPS),
	}, executor, budgets, logger)

	normalizer := imaging.NewNormalizer(storage, logger)
	docLoader := loader.New(budgets, logger)
	workerMetrics := metrics.NewWorkerMetrics()

	sniff := func(buf []byte) (domain.FileKind, bool) {
		result := filesniff.Detect(buf)
		return result.Kind, result.Detected
	}

	return &App{
		Config:  cfg,
		Queue:   queue,
		Metrics: workerMetrics,

		IngestUC:        usecase.NewIngestDocumentUseCase(docs, storage, docLoader, normalizer, sniff, queue, logger),
		ClassifyDocUC:   usecase.NewClassifyDocumentUseCase(docs, ai, queue, logger),
		ClassifyImageUC: usecase.NewClassifyImageUseCase(docs, storage, ai, queue, logger),
		EmbedTagsUC:     usecase.NewEmbedTagsUseCase(docs, tags, ai, workerMetrics, logger),
		SweeperUC:       usecase.NewSweeperUseCase(docs, cfg.StaleThreshold, cfg.SweepBatchSize, logger),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

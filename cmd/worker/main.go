package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/velstad/vault-pipeline/internal/bootstrap"
	"github.com/velstad/vault-pipeline/internal/config"
	"github.com/velstad/vault-pipeline/internal/core/domain"
	natsqueue "github.com/velstad/vault-pipeline/internal/infrastructure/queue/nats"
	"github.com/velstad/vault-pipeline/internal/observability/logging"
	"github.com/velstad/vault-pipeline/internal/observability/metrics"
)

const jobTimeout = 5 * time.Minute

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("vault-worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	register(ctx, app, domain.JobProcessDocument, func(jobCtx context.Context, env natsqueue.Envelope) error {
		var payload domain.ProcessDocumentPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		return app.IngestUC.Process(jobCtx, payload)
	})
	register(ctx, app, domain.JobClassifyDocument, func(jobCtx context.Context, env natsqueue.Envelope) error {
		var payload domain.ClassifyDocumentPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		return app.ClassifyDocUC.Process(jobCtx, payload)
	})
	register(ctx, app, domain.JobClassifyImage, func(jobCtx context.Context, env natsqueue.Envelope) error {
		var payload domain.ClassifyImagePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		return app.ClassifyImageUC.Process(jobCtx, payload)
	})
	register(ctx, app, domain.JobEmbedDocumentTags, func(jobCtx context.Context, env natsqueue.Envelope) error {
		var payload domain.EmbedTagsPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		return app.EmbedTagsUC.Process(jobCtx, payload)
	})

	go serveMetrics(ctx, app.Metrics, cfg.WorkerMetricsPort, logger)
	go runSweeper(ctx, app, cfg.SweepInterval)

	logger.Info("worker started",
		"queues", []string{domain.QueueDocuments},
		"subjectPrefix", cfg.NATSSubjectPrefix,
		"metricsPort", cfg.WorkerMetricsPort,
	)
	if err := app.Queue.Run(ctx); err != nil {
		log.Fatalf("queue run error: %v", err)
	}
}

func register(ctx context.Context, app *bootstrap.App, job string, handle natsqueue.HandlerFunc) {
	instrumented := func(jobCtx context.Context, env natsqueue.Envelope) error {
		app.Metrics.StartJob()
		if !env.EnqueuedAt.IsZero() {
			app.Metrics.ObserveQueueLag(job, time.Since(env.EnqueuedAt))
		}

		timed, cancel := context.WithTimeout(jobCtx, jobTimeout)
		defer cancel()

		start := time.Now()
		err := handle(timed, env)
		app.Metrics.FinishJob(job, time.Since(start), err)
		return err
	}
	if err := app.Queue.Handle(ctx, domain.QueueDocuments, job, instrumented); err != nil {
		log.Fatalf("subscribe %s error: %v", job, err)
	}
}

func serveMetrics(ctx context.Context, m *metrics.WorkerMetrics, port string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}

func runSweeper(ctx context.Context, app *bootstrap.App, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := app.SweeperUC.Sweep(ctx)
			if err != nil {
				continue // already logged; next tick retries
			}
			app.Metrics.ObserveSweep(result.DocumentsMarkedFailed)
		}
	}
}

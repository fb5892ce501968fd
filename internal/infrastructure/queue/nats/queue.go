// Package nats carries the pipeline's job traffic. Jobs are JSON envelopes
// published to "<prefix>.<queue>.<job>" subjects; workers consume through a
// shared queue group so each job lands on exactly one worker.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/velstad/vault-pipeline/internal/infrastructure/resilience"
)

const workerGroup = "workers"

// Envelope wraps a job payload on the wire. EnqueuedAt feeds the queue-lag
// metric on the consuming side.
type Envelope struct {
	ID         string          `json:"id"`
	Job        string          `json:"job"`
	Queue      string          `json:"queue"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	Payload    json.RawMessage `json:"payload"`
}

type HandlerFunc func(ctx context.Context, env Envelope) error

type Queue struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
	logger   *slog.Logger
	subs     []*nats.Subscription
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, prefix string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("vault-pipeline"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		prefix:   prefix,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) subject(queueName, job string) string {
	return fmt.Sprintf("%s.%s.%s", q.prefix, queueName, job)
}

// Enqueue publishes a job fire-and-forget; the caller never awaits the
// dispatched job's completion.
func (q *Queue) Enqueue(ctx context.Context, job string, payload any, queueName string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", job, err)
	}
	env := Envelope{
		ID:         uuid.NewString(),
		Job:        job,
		Queue:      queueName,
		EnqueuedAt: time.Now().UTC(),
		Payload:    body,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", job, err)
	}

	call := func(context.Context) error {
		if err := q.conn.Publish(q.subject(queueName, job), data); err != nil {
			return fmt.Errorf("nats publish %s: %w", job, err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// Handle registers a queue-group consumer for one job type. Core NATS
// queue groups are at-most-once: a handler error is logged and the delivery
// is gone, leaving the document record for the stale sweeper to mark
// failed. Automatic redelivery would require JetStream consumers.
func (q *Queue) Handle(ctx context.Context, queueName, job string, handler HandlerFunc) error {
	sub, err := q.conn.QueueSubscribe(q.subject(queueName, job), workerGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			q.logger.Error("discarding undecodable job envelope", "job", job, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, env); err != nil {
			q.logger.Error("job handler failed", "job", job, "job_id", env.ID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", job, err)
	}
	q.subs = append(q.subs, sub)
	return nil
}

// Run flushes the registered subscriptions and blocks until ctx is done,
// then drains so in-flight jobs finish before shutdown.
func (q *Queue) Run(ctx context.Context) error {
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	for _, sub := range q.subs {
		if err := sub.Drain(); err != nil {
			return fmt.Errorf("nats drain subscription: %w", err)
		}
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// Package openai adapts an OpenAI-compatible API into the pipeline's
// classifier and embedder boundaries. Calls are rate limited, retried
// through the resilience executor and bounded by operation-class budgets.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/velstad/vault-pipeline/internal/core/domain"
	"github.com/velstad/vault-pipeline/internal/infrastructure/filesniff"
	"github.com/velstad/vault-pipeline/internal/infrastructure/resilience"
)

type Config struct {
	APIKey            string
	BaseURL           string
	ChatModel         string
	EmbedModel        string
	RequestsPerSecond float64
}

type Client struct {
	api        *openai.Client
	chatModel  string
	embedModel string
	limiter    *rate.Limiter
	executor   *resilience.Executor
	budgets    resilience.Budgets
	logger     *slog.Logger
}

func New(cfg Config, executor *resilience.Executor, budgets resilience.Budgets, logger *slog.Logger) *Client {
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &Client{
		api:        openai.NewClientWithConfig(apiConfig),
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		executor:   executor,
		budgets:    budgets,
		logger:     logger,
	}
}

// ClassifyDocument classifies a text sample under the AI classification
// budget.
func (c *Client) ClassifyDocument(ctx context.Context, content string) (domain.Classification, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: documentClassificationPrompt},
		{Role: openai.ChatMessageRoleUser, Content: content},
	}
	return c.classify(ctx, "ai.classify_document", messages)
}

// ClassifyImage classifies raw image bytes via a vision prompt. The data
// URL mimetype comes from the image's own magic bytes so a misdeclared
// upload never poisons the request.
func (c *Client) ClassifyImage(ctx context.Context, data []byte) (domain.Classification, error) {
	mime := domain.MimeJPEG
	if res := filesniff.Detect(data); res.Detected {
		mime = res.Kind.Mime()
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: imageClassificationPrompt},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
				},
			},
		},
	}
	return c.classify(ctx, "ai.classify_image", messages)
}

func (c *Client) classify(ctx context.Context, operation string, messages []openai.ChatCompletionMessage) (domain.Classification, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Classification{}, fmt.Errorf("%s rate limit wait: %w", operation, err)
	}

	var raw string
	call := func(callCtx context.Context) error {
		resp, err := resilience.WithTimeout(callCtx, c.budgets.AIClassification,
			fmt.Sprintf("%s timed out after %s", operation, c.budgets.AIClassification),
			func(opCtx context.Context) (openai.ChatCompletionResponse, error) {
				return c.api.CreateChatCompletion(opCtx, openai.ChatCompletionRequest{
					Model:    c.chatModel,
					Messages: messages,
					ResponseFormat: &openai.ChatCompletionResponseFormat{
						Type: openai.ChatCompletionResponseFormatTypeJSONObject,
					},
				})
			})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%s: empty completion", operation)
		}
		raw = resp.Choices[0].Message.Content
		return nil
	}

	if err := c.execute(ctx, operation, call); err != nil {
		return domain.Classification{}, wrapTemporaryIfNeeded(operation, err)
	}

	var result domain.Classification
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil {
		return domain.Classification{}, fmt.Errorf("parse %s json: %w", operation, err)
	}
	if result.Tags == nil {
		result.Tags = []string{}
	}
	c.logger.Debug("classification completed",
		"operation", operation,
		"has_title", result.Title != "",
		"tags", len(result.Tags),
	)
	return result, nil
}

// EmbedMany embeds all texts in one batched request under the embedding
// budget.
func (c *Client) EmbedMany(ctx context.Context, texts []string) (domain.EmbeddingBatch, error) {
	if len(texts) == 0 {
		return domain.EmbeddingBatch{Model: c.embedModel}, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.EmbeddingBatch{}, fmt.Errorf("ai.embed rate limit wait: %w", err)
	}

	var batch domain.EmbeddingBatch
	call := func(callCtx context.Context) error {
		resp, err := resilience.WithTimeout(callCtx, c.budgets.Embedding,
			fmt.Sprintf("ai.embed timed out after %s", c.budgets.Embedding),
			func(opCtx context.Context) (openai.EmbeddingResponse, error) {
				return c.api.CreateEmbeddings(opCtx, openai.EmbeddingRequestStrings{
					Input: texts,
					Model: openai.EmbeddingModel(c.embedModel),
				})
			})
		if err != nil {
			return err
		}
		vectors := make([][]float32, len(resp.Data))
		for _, item := range resp.Data {
			vectors[item.Index] = item.Embedding
		}
		batch = domain.EmbeddingBatch{Vectors: vectors, Model: string(resp.Model)}
		return nil
	}

	if err := c.execute(ctx, "ai.embed", call); err != nil {
		return domain.EmbeddingBatch{}, wrapTemporaryIfNeeded("ai.embed", err)
	}
	return batch, nil
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor != nil {
		return c.executor.Execute(ctx, operation, call, classifyAPIError)
	}
	return call(ctx)
}

// extractJSONObject trims any prose the model wraps around the JSON body.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}

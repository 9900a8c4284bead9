package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/resume-matcher/internal/ai"
)

const (
	defaultModel          = "gemini-2.5-flash"
	defaultEmbeddingModel = "gemini-embedding-001"
	defaultMaxRetries     = 3

	// embedMaxChars is a conservative character proxy for the embedding
	// model's token budget (~4 chars per token).
	embedMaxChars  = 1100
	embedBatchSize = 64

	maxReplyTokens = 256
)

// Replaceable for tests.
var sleep = time.Sleep

// modelCaller abstracts the genai model service so tests can inject fakes.
type modelCaller interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Client wraps the Google GenAI client for both providers this system talks
// to: deterministic chat completions for fit scoring and dense embeddings
// for retrieval.
type Client struct {
	models         modelCaller
	model          string
	embeddingModel string
	maxRetries     int
	logger         *zap.Logger
}

// NewClient creates a Client configured for the Gemini API backend.
func NewClient(ctx context.Context, apiKey, model, embeddingModel string, maxRetries int, logger *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if embeddingModel = strings.TrimSpace(embeddingModel); embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		models:         client.Models,
		model:          model,
		embeddingModel: embeddingModel,
		maxRetries:     maxRetries,
		logger:         logger,
	}, nil
}

// Model returns the chat model identifier.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// EmbeddingModel returns the embedding model identifier.
func (c *Client) EmbeddingModel() string {
	if c == nil {
		return ""
	}
	return c.embeddingModel
}

// GenerateContent sends the prompt with deterministic decoding and returns
// the first textual response. Transient provider failures are retried with
// increasing backoff before the last error is surfaced.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.models == nil {
		return "", errors.New("gemini client is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	cfg := &genai.GenerateContentConfig{
		// Zero temperature keeps the reply format stable across calls.
		Temperature:     genai.Ptr[float32](0),
		MaxOutputTokens: maxReplyTokens,
	}

	var resp *genai.GenerateContentResponse
	err := c.withRetry(ctx, "generate content", func() error {
		var callErr error
		resp, callErr = c.models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// Embed returns the unit-length embedding of the provided text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds the provided texts in provider-sized batches and returns
// unit-length vectors aligned with the input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c == nil || c.models == nil {
		return nil, errors.New("gemini client is not initialized")
	}

	capped := make([]string, len(texts))
	for i, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("text at position %d: %w", i, ai.ErrEmptyInput)
		}
		if len(text) > embedMaxChars {
			text = text[:embedMaxChars]
		}
		capped[i] = text
	}

	vectors := make([][]float32, 0, len(capped))
	for start := 0; start < len(capped); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(capped) {
			end = len(capped)
		}

		batch, err := c.embedBatch(ctx, capped[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)

		c.logger.Debug("embedded batch",
			zap.Int("done", end),
			zap.Int("total", len(capped)),
		)
	}

	return vectors, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	var resp *genai.EmbedContentResponse
	err := c.withRetry(ctx, "embed content", func() error {
		var callErr error
		resp, callErr = c.models.EmbedContent(ctx, c.embeddingModel, contents, nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", errors.Join(ai.ErrEmbeddingUnavailable, err))
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed content: provider returned %d vectors for %d texts",
			len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, embedding := range resp.Embeddings {
		if embedding == nil || len(embedding.Values) == 0 {
			return nil, fmt.Errorf("embed content: empty vector at position %d", i)
		}
		normalized, err := normalize(embedding.Values)
		if err != nil {
			return nil, fmt.Errorf("embed content: vector at position %d: %w", i, err)
		}
		vectors[i] = normalized
	}

	return vectors, nil
}

// normalize scales the vector to unit length so inner product equals cosine
// similarity.
func normalize(values []float32) ([]float32, error) {
	var sum float64
	for _, v := range values {
		sum += float64(v) * float64(v)
	}

	norm := math.Sqrt(sum)
	if norm == 0 {
		return nil, errors.New("zero-norm vector cannot be normalized")
	}

	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(float64(v) / norm)
	}

	return out, nil
}

// withRetry runs fn up to maxRetries times, sleeping with linear backoff
// between attempts. Only transient provider failures are retried; malformed
// content is never a retry condition since the defect is content shape, not
// transport.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		if attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(attempt) * time.Second
		c.logger.Warn("retrying gemini call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		sleep(backoff)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}

	return fmt.Errorf("%d attempts exhausted: %w", c.maxRetries, err)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}

	// Anything else is assumed to be a transport hiccup.
	return true
}

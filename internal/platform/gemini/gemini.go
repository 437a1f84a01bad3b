package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"google.golang.org/genai"

	"github.com/labelforge/labelqueue/internal/config"
	"github.com/labelforge/labelqueue/internal/generation"
)

// Default retry tuning for transient API failures. Retrying here is safe
// because a completion/embedding call has no side effects; job-level retries
// remain a manual administrative action.
const (
	defaultMaxRetries = 2
	baseRetryDelay    = 2 * time.Second
)

// GeminiService implements generation.Completer and generation.Embedder
// using Google's Gemini API.
type GeminiService struct {
	logger         *slog.Logger
	client         *genai.Client
	model          string
	embeddingModel string
}

// NewGeminiService creates a new GeminiService with the provided
// configuration. The API key, completion model, and embedding model are all
// required.
func NewGeminiService(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
) (*GeminiService, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &GeminiService{
		logger:         logger,
		client:         client,
		model:          cfg.ModelName,
		embeddingModel: cfg.EmbeddingModel,
	}, nil
}

func validateConfig(cfg config.LLMConfig) error {
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding model cannot be empty", generation.ErrInvalidConfig)
	}
	return nil
}

// Complete generates one completion per prompt, preserving order. The whole
// batch shares one fate: any unrecoverable API error fails the call.
func (g *GeminiService) Complete(ctx context.Context, prompts []string) ([]string, error) {
	if len(prompts) == 0 {
		return nil, nil
	}

	results := make([]string, len(prompts))
	for i, prompt := range prompts {
		text, err := g.completeOne(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("prompt %d of %d: %w", i+1, len(prompts), err)
		}
		results[i] = text
	}

	return results, nil
}

func (g *GeminiService) completeOne(ctx context.Context, prompt string) (string, error) {
	var resp *genai.GenerateContentResponse

	err := g.withRetry(ctx, "generate_content", func() error {
		var callErr error
		resp, callErr = g.client.Models.GenerateContent(
			ctx, g.model, genai.Text(prompt), nil)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates returned", generation.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", generation.ErrContentBlocked
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", generation.ErrInvalidResponse)
	}

	return text, nil
}

// Embed generates one embedding vector per text, preserving order.
func (g *GeminiService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	var resp *genai.EmbedContentResponse
	err := g.withRetry(ctx, "embed_content", func() error {
		var callErr error
		resp, callErr = g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			generation.ErrInvalidResponse, len(texts), embeddingCount(resp))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}

	return vectors, nil
}

func embeddingCount(resp *genai.EmbedContentResponse) int {
	if resp == nil {
		return 0
	}
	return len(resp.Embeddings)
}

// withRetry runs the call with exponential backoff plus jitter for
// transient failures.
func (g *GeminiService) withRetry(ctx context.Context, op string, call func() error) error {
	var err error
	for attempt := 0; attempt <= defaultMaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * baseRetryDelay
			delay += time.Duration(rand.Int63n(int64(time.Second)))
			g.logger.WarnContext(ctx, "retrying Gemini API call",
				"operation", op,
				"attempt", attempt,
				"delay", delay,
				"error", err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err = call()
		if err == nil {
			return nil
		}
	}

	return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
}

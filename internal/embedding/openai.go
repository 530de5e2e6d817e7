package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DreamCats/textvec/internal/config"
)

// OpenAIClient implements Client for OpenAI-compatible embedding APIs
type OpenAIClient struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIClient creates a new OpenAI embedding client
func NewOpenAIClient(cfg *config.EmbeddingConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api_key is required")
	}

	model := openai.EmbeddingModel(cfg.Model)
	if model == "" {
		model = openai.SmallEmbedding3
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Ping embeds a short probe to confirm the model answers with the expected size.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	vector, err := c.Embed(ctx, "ping")
	if err != nil {
		return err
	}
	if len(vector) != c.Dimensions() {
		return fmt.Errorf("%w: model returned %d dimensions, want %d", ErrModelUnavailable, len(vector), c.Dimensions())
	}
	return nil
}

// Embed generates an embedding for a single text
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      c.model,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("invalid embedding index: %d", data.Index)
		}
		embeddings[data.Index] = data.Embedding
	}

	return embeddings, nil
}

// Dimensions returns the dimension of the embeddings
func (c *OpenAIClient) Dimensions() int {
	if c.dimensions > 0 {
		return c.dimensions
	}
	return config.DefaultDimensions
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusBadRequest:
			return fmt.Errorf("%w: %v", ErrEncoding, err)
		default:
			return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
}

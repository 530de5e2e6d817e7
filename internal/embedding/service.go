package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/DreamCats/textvec/internal/config"
)

var (
	// ErrModelUnavailable is returned when the model cannot be loaded or reached.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrEncoding is returned for input the model cannot encode.
	ErrEncoding = errors.New("embedding encoding error")
	// ErrDimensionMismatch is returned when the model output length differs from the configured dimensions.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Service provides embedding generation functionality
type Service struct {
	cfg    *config.EmbeddingConfig
	client Client
}

// Client is the interface for embedding API clients
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Ping verifies that the model can serve requests.
	Ping(ctx context.Context) error
}

// NewService creates a new embedding service
func NewService(cfg *config.EmbeddingConfig) (*Service, error) {
	var client Client
	var err error

	switch cfg.Provider {
	case "ollama":
		client, err = NewOllamaClient(cfg)
	case "openai":
		client, err = NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	return NewServiceWithClient(cfg, client), nil
}

// NewServiceWithClient wraps an existing client.
func NewServiceWithClient(cfg *config.EmbeddingConfig, client Client) *Service {
	return &Service{cfg: cfg, client: client}
}

// Load checks that the model is reachable. Call it once before the first Embed.
func (s *Service) Load(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		if errors.Is(err, ErrModelUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return nil
}

// Embed generates an embedding for a single text
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	vector, err := s.client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := s.checkDimensions(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// EmbedBatch generates embeddings for multiple texts, keeping input order.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if err := checkText(text); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
	}

	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}

	results := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := s.client.EmbedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d-%d: %w", i, end, err)
		}
		if len(embeddings) != end-i {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-i, len(embeddings))
		}
		for _, emb := range embeddings {
			if err := s.checkDimensions(emb); err != nil {
				return nil, err
			}
		}
		results = append(results, embeddings...)
	}

	return results, nil
}

// Dimensions returns the dimension of the embeddings
func (s *Service) Dimensions() int {
	if s.cfg != nil && s.cfg.Dimensions > 0 {
		return s.cfg.Dimensions
	}
	return s.client.Dimensions()
}

// Model returns the configured model name.
func (s *Service) Model() string {
	if s.cfg == nil {
		return ""
	}
	return s.cfg.Model
}

func (s *Service) checkDimensions(vector []float32) error {
	if want := s.Dimensions(); len(vector) != want {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, want, len(vector))
	}
	return nil
}

func checkText(text string) error {
	if text == "" {
		return fmt.Errorf("%w: cannot embed empty text", ErrEncoding)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: text is not valid UTF-8", ErrEncoding)
	}
	return nil
}

// Similarity computes cosine similarity between two vectors
func Similarity(a, b []float32) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("vector dimension mismatch: %d vs %d", len(a), len(b)))
	}

	var dotProduct float32
	var normA float32
	var normB float32

	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

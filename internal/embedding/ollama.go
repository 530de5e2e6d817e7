package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DreamCats/textvec/internal/config"
)

// OllamaClient implements Client against a local Ollama model server.
type OllamaClient struct {
	endpoint   string
	model      string
	dimensions int
	client     *http.Client
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// NewOllamaClient creates a new Ollama embedding client
func NewOllamaClient(cfg *config.EmbeddingConfig) (*OllamaClient, error) {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OllamaClient{
		endpoint:   endpoint,
		model:      model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Ping checks that the server is up and the model has been pulled.
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create tags request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: tags request failed: %s: %s", ErrModelUnavailable, resp.Status, strings.TrimSpace(string(raw)))
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("parse tags response: %w", err)
	}
	for _, m := range tags.Models {
		if modelMatches(m.Name, c.model) || modelMatches(m.Model, c.model) {
			return nil
		}
	}
	return fmt.Errorf("%w: model %q is not available on %s", ErrModelUnavailable, c.model, c.endpoint)
}

// modelMatches treats "name" and "name:latest" as the same model.
func modelMatches(have, want string) bool {
	if have == want {
		return true
	}
	return strings.TrimSuffix(have, ":latest") == strings.TrimSuffix(want, ":latest")
}

// Embed generates an embedding for a single text
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbeddingRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal embedding request: %v", ErrEncoding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding request failed: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s: %s", ErrModelUnavailable, resp.Status, strings.TrimSpace(string(raw)))
	default:
		return nil, fmt.Errorf("%w: %s: %s", ErrEncoding, resp.Status, strings.TrimSpace(string(raw)))
	}

	var parsed ollamaEmbeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("%w: embedding response returned empty vector", ErrEncoding)
	}

	vector := make([]float32, len(parsed.Embedding))
	for i, v := range parsed.Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

// EmbedBatch generates embeddings for multiple texts. The endpoint takes a
// single prompt per request.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vector
	}
	return embeddings, nil
}

// Dimensions returns the dimension of the embeddings
func (c *OllamaClient) Dimensions() int {
	if c.dimensions > 0 {
		return c.dimensions
	}
	return config.DefaultDimensions
}

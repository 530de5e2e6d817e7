package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DreamCats/textvec/internal/config"
)

func fakeOllama(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest","model":"nomic-embed-text:latest"}]}`))
	})
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Model != "nomic-embed-text" {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
			return
		}
		vec := make([]float64, dims)
		for i := range vec {
			vec[i] = float64(len(req.Prompt)+i) / 1000
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: vec})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbed(t *testing.T) {
	srv := fakeOllama(t, 768)
	cfg := &config.EmbeddingConfig{Provider: "ollama", Endpoint: srv.URL, Model: "nomic-embed-text", Dimensions: 768, BatchSize: 2}

	svc, err := NewService(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Load(context.Background()))

	vec, err := svc.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, vec, 768)
	assert.InDelta(t, 0.005, vec[0], 1e-6)

	batch, err := svc.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.InDelta(t, 0.003, batch[2][0], 1e-6)
}

func TestOllamaMissingModel(t *testing.T) {
	srv := fakeOllama(t, 768)
	cfg := &config.EmbeddingConfig{Provider: "ollama", Endpoint: srv.URL, Model: "all-mpnet-base-v2", Dimensions: 768}

	svc, err := NewService(cfg)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Load(context.Background()), ErrModelUnavailable)

	_, err = svc.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestOllamaServerDown(t *testing.T) {
	srv := fakeOllama(t, 768)
	url := srv.URL
	srv.Close()

	svc, err := NewService(&config.EmbeddingConfig{Provider: "ollama", Endpoint: url, Model: "nomic-embed-text", Dimensions: 768})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Load(context.Background()), ErrModelUnavailable)
}

func TestModelMatches(t *testing.T) {
	assert.True(t, modelMatches("nomic-embed-text:latest", "nomic-embed-text"))
	assert.True(t, modelMatches("nomic-embed-text", "nomic-embed-text"))
	assert.False(t, modelMatches("mxbai-embed-large:latest", "nomic-embed-text"))
}

func TestOpenAIEmbedBatch(t *testing.T) {
	var gotDims int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotDims = req.Dimensions

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		// reversed order exercises index mapping
		for i := range req.Input {
			j := len(req.Input) - 1 - i
			vec := make([]float32, req.Dimensions)
			vec[0] = float32(j)
			data[i] = item{Object: "embedding", Embedding: vec, Index: j}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	t.Cleanup(srv.Close)

	cfg := &config.EmbeddingConfig{Provider: "openai", APIKey: "sk-test", Endpoint: srv.URL + "/v1", Model: "text-embedding-3-small", Dimensions: 768, BatchSize: 8}
	svc, err := NewService(cfg)
	require.NoError(t, err)

	out, err := svc.EmbedBatch(context.Background(), []string{"x", "y", "z"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 768, gotDims)
	for i := range out {
		assert.Equal(t, float32(i), out[i][0])
	}
}

func TestOpenAIErrorsAreClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)

	svc, err := NewService(&config.EmbeddingConfig{Provider: "openai", APIKey: "sk-test", Endpoint: srv.URL, Dimensions: 768})
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEncoding)
}

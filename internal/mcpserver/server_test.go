package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DreamCats/textvec/internal/config"
	"github.com/DreamCats/textvec/internal/store"
)

const dims = 4

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "time" {
		return []float32{0, 0, 1, 0}, nil
	}
	return []float32{1, 0, 0, 0}, nil
}

func newTestServer(t *testing.T) (*Server, *store.DB, *config.Config) {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.Database.Path = filepath.Join(t.TempDir(), "db")
	cfg.Embedding.Dimensions = dims
	cfg.Search.TextIndex = filepath.Join(t.TempDir(), "text.bleve")
	require.NoError(t, cfg.Finalize())

	db, err := store.Open(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	table, err := db.Initialize(ctx, cfg.Database.Table, dims, true)
	require.NoError(t, err)
	meta := store.Meta{Source: "Immanuel Kant, Critique of Pure Reason", Comment: "Taken from gutenberg"}.Encode()
	for i, text := range []string{"Space is a form of outer sense.", "Logic is a canon.", "Time is the form of inner sense."} {
		v := make([]float32, dims)
		v[i] = 1
		_, err := table.Insert(ctx, store.Row{Vector: v, Text: text, Meta: meta})
		require.NoError(t, err)
	}
	return New(cfg, db, fixedEmbedder{}, "test"), db, cfg
}

func connectServer(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	_, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func connect(t *testing.T) (*mcp.ClientSession, *config.Config) {
	t.Helper()
	s, _, cfg := newTestServer(t)
	return connectServer(t, s), cfg
}

func call[T any](t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (T, *mcp.CallToolResult) {
	t.Helper()
	var out T
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if res.IsError || res.StructuredContent == nil {
		return out, res
	}
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))
	return out, res
}

func TestRetrieveTool(t *testing.T) {
	session, _ := connect(t)

	out, res := call[RetrieveOutput](t, session, "textvec_retrieve", map[string]any{"query": "time", "top_k": 2})
	require.False(t, res.IsError)
	assert.Equal(t, 2, out.Count)
	require.Len(t, out.Documents, 2)
	assert.Equal(t, "Time is the form of inner sense.\n\t- Immanuel Kant, Critique of Pure Reason", out.Documents[0])
	assert.Equal(t, "Taken from gutenberg", out.Results[0].Comment)
}

func TestRetrieveToolRejectsHugeTopK(t *testing.T) {
	session, _ := connect(t)
	_, res := call[RetrieveOutput](t, session, "textvec_retrieve", map[string]any{"query": "reason", "top_k": 1 << 40})
	assert.True(t, res.IsError)

	out, res := call[RetrieveOutput](t, session, "textvec_retrieve", map[string]any{"query": "reason", "top_k": 1000})
	require.False(t, res.IsError)
	assert.Equal(t, 3, out.Count)
}

func TestRetrieveToolRequiresQuery(t *testing.T) {
	session, _ := connect(t)
	_, res := call[RetrieveOutput](t, session, "textvec_retrieve", map[string]any{"query": ""})
	assert.True(t, res.IsError)
}

func TestIndexThenKeywordRetrieve(t *testing.T) {
	session, cfg := connect(t)

	_, res := call[RetrieveOutput](t, session, "textvec_retrieve", map[string]any{"query": "canon", "mode": "keyword"})
	assert.True(t, res.IsError, "keyword search before the index exists")

	idx, res := call[IndexOutput](t, session, "textvec_index", map[string]any{})
	require.False(t, res.IsError)
	assert.Equal(t, 3, idx.Rows)
	assert.Equal(t, cfg.Search.TextIndex, idx.Path)

	out, res := call[RetrieveOutput](t, session, "textvec_retrieve", map[string]any{"query": "canon", "mode": "keyword"})
	require.False(t, res.IsError)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "Logic is a canon.", out.Results[0].Text)
}

func TestStatusTool(t *testing.T) {
	session, _ := connect(t)

	out, res := call[StatusOutput](t, session, "textvec_status", map[string]any{})
	require.False(t, res.IsError)
	require.Len(t, out.Tables, 1)
	assert.Equal(t, TableStatus{Name: "embeddings", Dimension: dims, Rows: 3}, out.Tables[0])
	assert.Empty(t, out.Runs)
	assert.False(t, out.KeywordIndex)
}

func TestStatusToolSortsTables(t *testing.T) {
	s, db, _ := newTestServer(t)
	for _, name := range []string{"zeta", "alpha"} {
		_, err := db.Initialize(context.Background(), name, dims, true)
		require.NoError(t, err)
	}
	session := connectServer(t, s)

	for range 3 {
		out, res := call[StatusOutput](t, session, "textvec_status", map[string]any{})
		require.False(t, res.IsError)
		var names []string
		for _, table := range out.Tables {
			names = append(names, table.Name)
		}
		assert.Equal(t, []string{"alpha", "embeddings", "zeta"}, names)
	}
}

func TestStatusToolCountsKeywordIndex(t *testing.T) {
	session, _ := connect(t)
	_, res := call[IndexOutput](t, session, "textvec_index", map[string]any{})
	require.False(t, res.IsError)

	out, res := call[StatusOutput](t, session, "textvec_status", map[string]any{})
	require.False(t, res.IsError)
	assert.True(t, out.KeywordIndex)
	assert.Equal(t, uint64(3), out.KeywordIndexRows)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, 7, pickInt(0, 7))
	assert.Equal(t, 3, pickInt(3, 7))
}

package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DreamCats/textvec/internal/store"
	"github.com/DreamCats/textvec/internal/textindex"
)

const dims = 8

// axisEmbedder maps known texts to fixed directions.
type axisEmbedder map[string][]float32

func (e axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e[text]; ok {
		return v, nil
	}
	return make([]float32, dims), nil
}

func axis(i int, extra ...float32) []float32 {
	v := make([]float32, dims)
	v[i] = 1
	for j, x := range extra {
		v[(i+j+1)%dims] = x
	}
	return v
}

var corpus = []string{
	"All our knowledge begins with experience.",
	"Space is not an empirical conception.",
	"Time is a necessary representation.",
}

func setup(t *testing.T, withIndex bool) *Retriever {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	table, err := db.Initialize(ctx, "embeddings", dims, true)
	require.NoError(t, err)
	meta := store.Meta{Source: "Immanuel Kant, Critique of Pure Reason", Comment: "Taken from gutenberg"}.Encode()
	for i, text := range corpus {
		_, err := table.Insert(ctx, store.Row{Vector: axis(i), Text: text, Meta: meta})
		require.NoError(t, err)
	}

	var idx *textindex.Index
	if withIndex {
		dir := filepath.Join(t.TempDir(), "text.bleve")
		_, err := textindex.Rebuild(ctx, dir, table.Rows(ctx))
		require.NoError(t, err)
		idx, err = textindex.Open(dir)
		require.NoError(t, err)
		t.Cleanup(func() { idx.Close() })
	}

	embedder := axisEmbedder{
		"what is time":       axis(2, 0.3),
		"experience":         axis(0),
		"space and time":     axis(1, 0.9),
		"necessary priority": axis(1),
	}
	return NewRetriever(table, embedder, idx)
}

func TestRetrieveVector(t *testing.T) {
	r := setup(t, false)
	results, err := r.Retrieve(context.Background(), "what is time", SearchOptions{TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, corpus[2], results[0].Text)
	assert.Equal(t, "Immanuel Kant, Critique of Pure Reason", results[0].Source)
	assert.Equal(t, "Taken from gutenberg", results[0].Comment)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestRetrieveKeyword(t *testing.T) {
	r := setup(t, true)
	results, err := r.Retrieve(context.Background(), "empirical", SearchOptions{TopK: 5, Mode: ModeKeyword})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, corpus[1], results[0].Text)
	assert.Positive(t, results[0].KeywordScore)
}

func TestRetrieveKeywordNeedsIndex(t *testing.T) {
	r := setup(t, false)
	_, err := r.Retrieve(context.Background(), "empirical", SearchOptions{Mode: ModeKeyword})
	assert.ErrorContains(t, err, "text index")
}

func TestRetrieveHybrid(t *testing.T) {
	r := setup(t, true)
	// The vector side prefers row 2, the keyword side only matches row 3.
	results, err := r.Retrieve(context.Background(), "necessary priority", SearchOptions{
		TopK:          3,
		Mode:          ModeHybrid,
		VectorWeight:  0.4,
		KeywordWeight: 0.6,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, corpus[2], results[0].Text)
	assert.InDelta(t, 0.6, results[0].Score, 1e-6)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestFormat(t *testing.T) {
	got := Format(Result{Text: "Time is a necessary representation.", Source: "Kant"})
	assert.Equal(t, "Time is a necessary representation.\n\t- Kant", got)

	assert.Equal(t, []string{"a\n\t- s", "b\n\t- s"}, FormatAll([]Result{{Text: "a", Source: "s"}, {Text: "b", Source: "s"}}))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("hybrid")
	require.NoError(t, err)
	assert.Equal(t, ModeHybrid, m)
	_, err = ParseMode("fuzzy")
	assert.Error(t, err)
}

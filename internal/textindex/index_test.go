package textindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DreamCats/textvec/internal/store"
)

func TestRebuildAndSearch(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer db.Close()

	table, err := db.Initialize(ctx, "embeddings", 4, true)
	require.NoError(t, err)
	meta := store.Meta{Source: "Immanuel Kant, Critique of Pure Reason", Comment: "Taken from gutenberg"}.Encode()
	texts := []string{
		"All our knowledge begins with experience.",
		"Space is not an empirical conception.",
		"Time is a necessary representation.",
	}
	for _, text := range texts {
		_, err := table.Insert(ctx, store.Row{Vector: []float32{1, 0, 0, 0}, Text: text, Meta: meta})
		require.NoError(t, err)
	}

	dir := filepath.Join(t.TempDir(), "text.bleve")
	n, err := Rebuild(ctx, dir, table.Rows(ctx))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	idx, err := Open(dir)
	require.NoError(t, err)
	defer idx.Close()

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	hits, err := idx.Search(ctx, "experience", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, int64(1), hits[0].ID)

	hits, err = idx.Search(ctx, "representation", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(3), hits[0].ID)
}

func TestCreateResetsIndex(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "text.bleve")

	rows := func(yield func(*store.StoredRow, error) bool) {
		yield(&store.StoredRow{ID: 7, Row: store.Row{Text: "pure reason", Meta: store.Meta{Source: "kant"}.Encode()}}, nil)
	}
	_, err := Rebuild(ctx, dir, rows)
	require.NoError(t, err)

	idx, err := Open(dir)
	require.NoError(t, err)
	hits, err := idx.Search(ctx, "reason", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(7), hits[0].ID)
	require.NoError(t, idx.Close())

	idx, err = Create(dir)
	require.NoError(t, err)
	defer idx.Close()
	count, err := idx.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.bleve"))
	assert.Error(t, err)
}

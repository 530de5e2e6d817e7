// Package retrieval answers text queries against an ingested vector table.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/DreamCats/textvec/internal/store"
	"github.com/DreamCats/textvec/internal/textindex"
)

// Mode selects how candidates are found.
type Mode string

const (
	ModeVector  Mode = "vector"
	ModeKeyword Mode = "keyword"
	ModeHybrid  Mode = "hybrid"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeVector, ModeKeyword, ModeHybrid:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported search mode: %s", s)
	}
}

// QueryEmbedder embeds the query text.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result is one retrieved chunk.
type Result struct {
	ID           int64   `json:"id"`
	Text         string  `json:"text"`
	Source       string  `json:"source"`
	Comment      string  `json:"comment"`
	Score        float64 `json:"score"`
	VectorScore  float64 `json:"vector_score,omitempty"`
	KeywordScore float64 `json:"keyword_score,omitempty"`
}

// MaxTopK bounds how many results one query may ask for.
const MaxTopK = 1000

// SearchOptions configures a query.
type SearchOptions struct {
	TopK          int
	Mode          Mode
	VectorWeight  float64 // hybrid only
	KeywordWeight float64 // hybrid only
}

// DefaultSearchOptions returns the options used by the search command.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		TopK:          10,
		Mode:          ModeVector,
		VectorWeight:  0.7,
		KeywordWeight: 0.3,
	}
}

// Retriever searches one table. The keyword index is optional and only
// needed for keyword and hybrid modes.
type Retriever struct {
	table    *store.Table
	embedder QueryEmbedder
	keywords *textindex.Index
}

// NewRetriever creates a retriever. keywords may be nil.
func NewRetriever(table *store.Table, embedder QueryEmbedder, keywords *textindex.Index) *Retriever {
	return &Retriever{table: table, embedder: embedder, keywords: keywords}
}

// Retrieve returns up to opts.TopK results, best first.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.TopK > MaxTopK {
		return nil, fmt.Errorf("top_k must be at most %d, got: %d", MaxTopK, opts.TopK)
	}
	if opts.Mode == "" {
		opts.Mode = ModeVector
	}
	if opts.Mode != ModeVector && r.keywords == nil {
		return nil, fmt.Errorf("%s search needs a text index; run the index command first", opts.Mode)
	}

	switch opts.Mode {
	case ModeVector:
		return r.vectorSearch(ctx, query, opts.TopK)
	case ModeKeyword:
		return r.keywordSearch(ctx, query, opts.TopK)
	case ModeHybrid:
		return r.hybridSearch(ctx, query, opts)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", opts.Mode)
	}
}

func (r *Retriever) vectorSearch(ctx context.Context, query string, k int) ([]Result, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := r.table.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		res, err := newResult(&hit.StoredRow)
		if err != nil {
			return nil, err
		}
		res.Score = hit.Score
		res.VectorScore = hit.Score
		results = append(results, res)
	}
	return results, nil
}

func (r *Retriever) keywordSearch(ctx context.Context, query string, k int) ([]Result, error) {
	hits, err := r.keywords.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		row, err := r.table.Get(ctx, hit.ID)
		if err != nil {
			return nil, fmt.Errorf("text index is stale, rebuild it: %w", err)
		}
		res, err := newResult(row)
		if err != nil {
			return nil, err
		}
		res.Score = hit.Score
		res.KeywordScore = hit.Score
		results = append(results, res)
	}
	return results, nil
}

// hybridSearch merges both candidate lists. Keyword scores are scaled to
// [0, 1] by the best keyword hit before weighting.
func (r *Retriever) hybridSearch(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	totalWeight := opts.VectorWeight + opts.KeywordWeight
	if totalWeight <= 0 {
		opts.VectorWeight, opts.KeywordWeight, totalWeight = 1, 0, 1
	}
	vw := opts.VectorWeight / totalWeight
	kw := opts.KeywordWeight / totalWeight

	vectorResults, err := r.vectorSearch(ctx, query, opts.TopK*2)
	if err != nil {
		return nil, err
	}
	keywordResults, err := r.keywordSearch(ctx, query, opts.TopK*2)
	if err != nil {
		return nil, err
	}

	merged := make(map[int64]*Result, len(vectorResults)+len(keywordResults))
	for i := range vectorResults {
		res := vectorResults[i]
		merged[res.ID] = &res
	}
	maxKeyword := 0.0
	for _, res := range keywordResults {
		maxKeyword = max(maxKeyword, res.KeywordScore)
	}
	for _, res := range keywordResults {
		existing, ok := merged[res.ID]
		if !ok {
			res.Score = 0
			merged[res.ID] = &res
			existing = merged[res.ID]
		}
		if maxKeyword > 0 {
			existing.KeywordScore = res.KeywordScore / maxKeyword
		}
	}

	results := make([]Result, 0, len(merged))
	for _, res := range merged {
		res.Score = vw*res.VectorScore + kw*res.KeywordScore
		results = append(results, *res)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

func newResult(row *store.StoredRow) (Result, error) {
	meta, err := store.ParseMeta(row.Meta)
	if err != nil {
		return Result{}, fmt.Errorf("row %d: %w", row.ID, err)
	}
	return Result{
		ID:      row.ID,
		Text:    row.Text,
		Source:  meta.Source,
		Comment: meta.Comment,
	}, nil
}

// Format renders a result the way it is handed to a prompt: the chunk text
// followed by an indented source line.
func Format(res Result) string {
	return fmt.Sprintf("%s\n\t- %s", res.Text, res.Source)
}

// FormatAll formats every result.
func FormatAll(results []Result) []string {
	out := make([]string, len(results))
	for i, res := range results {
		out[i] = Format(res)
	}
	return out
}

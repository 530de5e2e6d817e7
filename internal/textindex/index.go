// Package textindex keeps a bleve keyword index beside a vector table.
package textindex

import (
	"context"
	"fmt"
	"iter"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/DreamCats/textvec/internal/store"
)

const batchSize = 500

// Doc is the indexed form of a row.
type Doc struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	Comment string `json:"comment"`
}

// Hit is a keyword match on a row id.
type Hit struct {
	ID    int64
	Score float64
}

// Index wraps a bleve index keyed by row id.
type Index struct {
	index bleve.Index
}

// Create resets dir and creates an empty index in it.
func Create(dir string) (*Index, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("reset text index dir: %w", err)
	}
	index, err := bleve.New(dir, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// Open opens an existing index.
func Open(dir string) (*Index, error) {
	index, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// Count returns the number of indexed rows.
func (x *Index) Count() (uint64, error) {
	return x.index.DocCount()
}

// Search runs a match query over the chunk text and metadata.
func (x *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), k, 0, false)
	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("keyword search: bad document id %q", h.ID)
		}
		hits = append(hits, Hit{ID: id, Score: h.Score})
	}
	return hits, nil
}

// Close closes the index.
func (x *Index) Close() error {
	return x.index.Close()
}

// Rebuild recreates the index at dir from rows and returns how many rows
// were indexed.
func Rebuild(ctx context.Context, dir string, rows iter.Seq2[*store.StoredRow, error]) (int, error) {
	x, err := Create(dir)
	if err != nil {
		return 0, err
	}
	defer x.Close()

	batch := x.index.NewBatch()
	count := 0
	for row, err := range rows {
		if err != nil {
			return count, err
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}
		meta, err := store.ParseMeta(row.Meta)
		if err != nil {
			return count, fmt.Errorf("row %d: %w", row.ID, err)
		}
		doc := Doc{Text: row.Text, Source: meta.Source, Comment: meta.Comment}
		if err := batch.Index(strconv.FormatInt(row.ID, 10), doc); err != nil {
			return count, fmt.Errorf("index row %d: %w", row.ID, err)
		}
		count++
		if batch.Size() >= batchSize {
			if err := x.index.Batch(batch); err != nil {
				return count, fmt.Errorf("flush text index batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := x.index.Batch(batch); err != nil {
			return count, fmt.Errorf("flush text index batch: %w", err)
		}
	}
	return count, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "text"

	docMapping := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Store = false
	textField.Index = true
	docMapping.AddFieldMappingsAt("text", textField)

	sourceField := bleve.NewTextFieldMapping()
	sourceField.Store = true
	sourceField.Index = true
	docMapping.AddFieldMappingsAt("source", sourceField)

	commentField := bleve.NewTextFieldMapping()
	commentField.Store = true
	commentField.Index = true
	docMapping.AddFieldMappingsAt("comment", commentField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

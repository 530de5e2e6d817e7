package ingest

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/DreamCats/textvec/internal/splitter"
	"github.com/DreamCats/textvec/internal/store"
)

// Embedder turns one chunk into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder embeds several chunks in one request.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Inserter appends one row to a vector table.
type Inserter interface {
	Insert(ctx context.Context, row store.Row) (int64, error)
}

// Options controls how a document becomes rows.
type Options struct {
	// StoreFullText stores the whole document text in every row instead of
	// the row's own chunk.
	StoreFullText bool
	// Workers is the number of concurrent Embed calls. Rows are inserted in
	// chunk order regardless.
	Workers int
	// BatchSize groups chunks into one EmbedBatch call when Workers is 1 and
	// the embedder is a BatchEmbedder. Rows are still inserted one by one.
	BatchSize int
	Progress  ProgressReporter
}

// Pipeline splits, embeds and inserts one document at a time.
type Pipeline struct {
	splitter splitter.Splitter
	embedder Embedder
	inserter Inserter
	opts     Options
}

// NewPipeline creates a pipeline writing to inserter.
func NewPipeline(split splitter.Splitter, embedder Embedder, inserter Inserter, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{
		splitter: split,
		embedder: embedder,
		inserter: inserter,
		opts:     opts,
	}
}

// Ingest inserts one row per chunk of doc and returns the number of rows
// inserted. The first error stops the document; rows inserted before it
// stay in the table.
func (p *Pipeline) Ingest(ctx context.Context, doc Document) (int, error) {
	meta := store.Meta{Source: doc.Source, Comment: doc.Comment}.Encode()

	chunks := p.splitter.Chunks(doc.Content)
	if p.opts.Progress != nil {
		total := 0
		for range chunks {
			total++
		}
		p.opts.Progress.Start(total)
		defer p.opts.Progress.Finish()
	}

	inserted := 0
	for c, err := range p.embed(ctx, chunks) {
		if err != nil {
			return inserted, fmt.Errorf("%s: chunk %d: %w", doc.Path, c.index, err)
		}
		text := c.text
		if p.opts.StoreFullText {
			text = doc.Content
		}
		if _, err := p.inserter.Insert(ctx, store.Row{Vector: c.vector, Text: text, Meta: meta}); err != nil {
			return inserted, fmt.Errorf("%s: chunk %d: %w", doc.Path, c.index, err)
		}
		inserted++
		if p.opts.Progress != nil {
			p.opts.Progress.Increment()
		}
	}
	return inserted, nil
}

type embeddedChunk struct {
	index  int
	text   string
	vector []float32
}

// embed yields chunks with their vectors in chunk order and stops after the
// first error.
func (p *Pipeline) embed(ctx context.Context, chunks iter.Seq[string]) iter.Seq2[embeddedChunk, error] {
	if p.opts.Workers == 1 {
		if be, ok := p.embedder.(BatchEmbedder); ok && p.opts.BatchSize > 1 {
			return p.embedBatches(ctx, chunks, be)
		}
		return func(yield func(embeddedChunk, error) bool) {
			i := 0
			for text := range chunks {
				if err := ctx.Err(); err != nil {
					yield(embeddedChunk{index: i, text: text}, err)
					return
				}
				vector, err := p.embedder.Embed(ctx, text)
				if !yield(embeddedChunk{index: i, text: text, vector: vector}, err) || err != nil {
					return
				}
				i++
			}
		}
	}
	return p.embedParallel(ctx, chunks)
}

// embedBatches embeds BatchSize chunks per request. An error is reported
// against the first chunk of the failed batch.
func (p *Pipeline) embedBatches(ctx context.Context, chunks iter.Seq[string], be BatchEmbedder) iter.Seq2[embeddedChunk, error] {
	return func(yield func(embeddedChunk, error) bool) {
		batch := make([]string, 0, p.opts.BatchSize)
		next := 0
		flush := func() bool {
			if len(batch) == 0 {
				return true
			}
			if err := ctx.Err(); err != nil {
				yield(embeddedChunk{index: next, text: batch[0]}, err)
				return false
			}
			vectors, err := be.EmbedBatch(ctx, batch)
			if err == nil && len(vectors) != len(batch) {
				err = fmt.Errorf("embed batch returned %d vectors for %d chunks", len(vectors), len(batch))
			}
			if err != nil {
				yield(embeddedChunk{index: next, text: batch[0]}, err)
				return false
			}
			for j, text := range batch {
				if !yield(embeddedChunk{index: next, text: text, vector: vectors[j]}, nil) {
					return false
				}
				next++
			}
			batch = batch[:0]
			return true
		}

		for text := range chunks {
			batch = append(batch, text)
			if len(batch) == p.opts.BatchSize && !flush() {
				return
			}
		}
		flush()
	}
}

type embedJob struct {
	chunk embeddedChunk
	done  chan embedResult
}

type embedResult struct {
	vector []float32
	err    error
}

func (p *Pipeline) embedParallel(parent context.Context, chunks iter.Seq[string]) iter.Seq2[embeddedChunk, error] {
	return func(yield func(embeddedChunk, error) bool) {
		ctx, cancel := context.WithCancel(parent)
		jobs := make(chan embedJob)
		pending := make(chan embedJob, p.opts.Workers*2)

		var wg sync.WaitGroup
		for range p.opts.Workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for job := range jobs {
					vector, err := p.embedder.Embed(ctx, job.chunk.text)
					job.done <- embedResult{vector: vector, err: err}
				}
			}()
		}

		go func() {
			defer close(jobs)
			defer close(pending)
			i := 0
			for text := range chunks {
				job := embedJob{
					chunk: embeddedChunk{index: i, text: text},
					done:  make(chan embedResult, 1),
				}
				select {
				case pending <- job:
				case <-ctx.Done():
					return
				}
				select {
				case jobs <- job:
				case <-ctx.Done():
					return
				}
				i++
			}
		}()

		defer wg.Wait()
		defer cancel()

		for job := range pending {
			var res embedResult
			select {
			case res = <-job.done:
			case <-ctx.Done():
				yield(job.chunk, ctx.Err())
				return
			}
			job.chunk.vector = res.vector
			if !yield(job.chunk, res.err) || res.err != nil {
				return
			}
		}
		// pending also closes when the producer gives up on a cancelled ctx.
		if err := ctx.Err(); err != nil {
			yield(embeddedChunk{}, err)
		}
	}
}

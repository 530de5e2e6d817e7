package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/DreamCats/textvec/internal/config"
	"github.com/DreamCats/textvec/internal/splitter"
	"github.com/DreamCats/textvec/internal/store"
	"github.com/DreamCats/textvec/internal/textindex"
)

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Table     string
	Documents int
	Rows      int
	Duration  time.Duration
}

// Runner ingests a set of documents into one table and records the run.
type Runner struct {
	cfg      *config.Config
	db       *store.DB
	splitter splitter.Splitter
	embedder Embedder
	runs     *store.RunStore
	progress bool
}

// NewRunner creates a runner. The embedder must already be loaded.
func NewRunner(cfg *config.Config, db *store.DB, split splitter.Splitter, embedder Embedder) *Runner {
	return &Runner{
		cfg:      cfg,
		db:       db,
		splitter: split,
		embedder: embedder,
		runs:     store.NewRunStore(db),
		progress: !cfg.Ingest.NoProgress && DefaultProgressEnabled(),
	}
}

// SetProgress overrides terminal detection for the progress bar.
func (r *Runner) SetProgress(enabled bool) {
	r.progress = enabled
}

// Run initializes the table once and ingests paths in order. It stops at the
// first failing document. The run is recorded as failed in that case and the
// summary still reports what was written.
func (r *Runner) Run(ctx context.Context, paths []string) (*Summary, error) {
	start := time.Now()
	ingestCfg := r.cfg.Ingest
	summary := &Summary{Table: r.cfg.Database.Table}

	runID, err := r.runs.Start(ctx, store.Run{
		Table:   r.cfg.Database.Table,
		Source:  ingestCfg.Source,
		Comment: ingestCfg.Comment,
		Input:   strings.Join(paths, ","),
	})
	if err != nil {
		return nil, err
	}
	summary.RunID = runID

	runErr := r.ingestAll(ctx, paths, summary)
	summary.Duration = time.Since(start)

	// The run record is written even if ctx was cancelled.
	finishCtx := context.WithoutCancel(ctx)
	if err := r.runs.Finish(finishCtx, runID, summary.Documents, summary.Rows, runErr); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if runErr != nil {
		log.Printf("Ingestion failed after %d documents and %d rows: %v", summary.Documents, summary.Rows, runErr)
		return summary, runErr
	}

	log.Printf("Ingested %d documents into %s (%d rows) in %v", summary.Documents, summary.Table, summary.Rows, summary.Duration)
	return summary, nil
}

func (r *Runner) ingestAll(ctx context.Context, paths []string, summary *Summary) error {
	table, err := r.db.Initialize(ctx, r.cfg.Database.Table, r.cfg.Embedding.Dimensions, r.cfg.Database.ShouldOverwrite())
	if err != nil {
		return fmt.Errorf("initialize table: %w", err)
	}

	for _, path := range paths {
		doc, err := LoadDocument(path, r.cfg.Ingest.Source, r.cfg.Ingest.Comment)
		if err != nil {
			return err
		}
		pipeline := NewPipeline(r.splitter, r.embedder, table, Options{
			StoreFullText: r.cfg.Ingest.StoreFullText,
			Workers:       r.cfg.Ingest.Workers,
			BatchSize:     r.cfg.Embedding.BatchSize,
			Progress:      NewChunkProgress(r.progress, filepath.Base(path)),
		})
		log.Printf("Ingesting %s", path)
		n, err := pipeline.Ingest(ctx, doc)
		summary.Rows += n
		if err != nil {
			return err
		}
		summary.Documents++
	}

	if dir := r.cfg.Search.TextIndex; dir != "" {
		n, err := textindex.Rebuild(ctx, dir, table.Rows(ctx))
		if err != nil {
			return fmt.Errorf("rebuild text index: %w", err)
		}
		log.Printf("Indexed %d rows for keyword search in %s", n, dir)
	}
	return nil
}

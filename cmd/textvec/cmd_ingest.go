package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"

	"github.com/DreamCats/textvec/cmd/textvec/internal"
	"github.com/DreamCats/textvec/internal/config"
	"github.com/DreamCats/textvec/internal/ingest"
	"github.com/DreamCats/textvec/internal/splitter"
)

// handleIngest implements the ingest subcommand
func handleIngest(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)

	var include internal.StringList
	input := fs.String("input", cfg.Ingest.Input, "Document file or directory to ingest")
	fs.Var(&include, "include", "Glob for files under a directory input (repeatable)")
	source := fs.String("source", cfg.Ingest.Source, "meta.source stored on every row")
	comment := fs.String("comment", cfg.Ingest.Comment, "meta.comment stored on every row")
	appendRows := fs.Bool("append", !cfg.Database.ShouldOverwrite(), "Append to the table instead of recreating it")
	fullText := fs.Bool("full-text", cfg.Ingest.StoreFullText, "Store the whole document text in every row")
	workers := fs.Int("workers", cfg.Ingest.Workers, "Concurrent embedding requests")
	chunkSize := fs.Int("chunk-size", cfg.Splitter.ChunkSize, "Maximum chunk size in characters")
	chunkOverlap := fs.Int("chunk-overlap", cfg.Splitter.ChunkOverlap, "Characters shared by consecutive chunks")
	kind := fs.String("splitter", cfg.Splitter.Kind, `Splitter: "character" or "recursive"`)
	noProgress := fs.Bool("no-progress", cfg.Ingest.NoProgress, "Disable the progress bar")
	verbose := fs.Bool("v", false, "Verbose output")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    textvec ingest [options]

DESCRIPTION:
    Read each document, split it into chunks, embed every chunk and store
    one row {vector, text, meta} per chunk in the configured table.
    By default the table is recreated first.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    textvec ingest -input test-doc.txt -source "Immanuel Kant, Critique of Pure Reason" -comment "Taken from gutenberg"
    textvec ingest -input docs/ -include "**/*.md" -append -workers 4
    textvec ingest -input book.txt -splitter recursive -chunk-size 800 -chunk-overlap 100
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if *verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	cfg.Ingest.Input = *input
	if len(include) > 0 {
		cfg.Ingest.Include = include
	}
	cfg.Ingest.Source = *source
	cfg.Ingest.Comment = *comment
	cfg.Ingest.StoreFullText = *fullText
	cfg.Ingest.Workers = *workers
	cfg.Ingest.NoProgress = *noProgress
	overwrite := !*appendRows
	cfg.Database.Overwrite = &overwrite
	cfg.Splitter.ChunkSize = *chunkSize
	cfg.Splitter.ChunkOverlap = *chunkOverlap
	cfg.Splitter.Kind = *kind
	if err := cfg.Finalize(); err != nil {
		log.Fatalf("%v", err)
	}

	if cfg.Ingest.Input == "" {
		fmt.Fprintf(os.Stderr, "Error: -input is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	paths, err := ingest.Discover(cfg.Ingest.Input, cfg.Ingest.Include)
	if err != nil {
		log.Fatalf("Failed to find documents: %v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("No documents matched under %s", cfg.Ingest.Input)
	}

	split, err := splitter.New(cfg.Splitter)
	if err != nil {
		log.Fatalf("Failed to create splitter: %v", err)
	}

	embedder := loadEmbedder(ctx, cfg)
	db := openDB(cfg)
	defer db.Close()

	mode := "overwrite"
	if !overwrite {
		mode = "append"
	}
	log.Printf("Ingesting %d document(s) into %s:%s (%s, model %s, %d dims)",
		len(paths), db.Path(), cfg.Database.Table, mode, embedder.Model(), embedder.Dimensions())

	runner := ingest.NewRunner(cfg, db, split, embedder)
	summary, err := runner.Run(ctx, paths)
	if err != nil {
		if summary != nil {
			fmt.Fprintf(os.Stderr, "%s %d row(s) from %d document(s) were stored before the failure (run %s)\n",
				color.RedString("Ingestion failed."), summary.Rows, summary.Documents, summary.RunID)
		}
		db.Close()
		log.Fatalf("Ingestion failed: %v", err)
	}

	fmt.Println()
	color.Green("Ingestion completed")
	fmt.Printf("   Run:        %s\n", summary.RunID)
	fmt.Printf("   Table:      %s\n", summary.Table)
	fmt.Printf("   Documents:  %6d\n", summary.Documents)
	fmt.Printf("   Rows:       %6d\n", summary.Rows)
	fmt.Printf("   Duration:   %v\n", summary.Duration)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/DreamCats/textvec/internal/config"
	"github.com/DreamCats/textvec/internal/textindex"
)

// handleIndex implements the index subcommand
func handleIndex(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	dir := fs.String("dir", cfg.Search.TextIndex, "Keyword index directory (default: search.text_index)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    textvec index [options]

DESCRIPTION:
    Rebuild the bleve keyword index from every stored row. Ingest does this
    automatically when search.text_index is set.

OPTIONS:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if *dir == "" {
		fmt.Fprintf(os.Stderr, "Error: set search.text_index in the config or pass -dir\n\n")
		fs.Usage()
		os.Exit(1)
	}

	db := openDB(cfg)
	defer db.Close()
	table, err := db.OpenTable(ctx, cfg.Database.Table)
	if err != nil {
		log.Fatalf("Failed to open table: %v", err)
	}

	start := time.Now()
	n, err := textindex.Rebuild(ctx, *dir, table.Rows(ctx))
	if err != nil {
		log.Fatalf("Indexing failed: %v", err)
	}

	color.Green("Keyword index rebuilt")
	fmt.Printf("   Rows:     %6d\n", n)
	fmt.Printf("   Path:     %s\n", *dir)
	fmt.Printf("   Duration: %v\n", time.Since(start))
}

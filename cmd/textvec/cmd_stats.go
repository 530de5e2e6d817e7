package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/DreamCats/textvec/internal/config"
	"github.com/DreamCats/textvec/internal/store"
)

// handleStats implements the stats subcommand
func handleStats(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	var jsonOutput bool
	var runLimit int
	fs.BoolVar(&jsonOutput, "json", false, "Output as JSON")
	fs.IntVar(&runLimit, "runs", 5, "Number of recent runs to show")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    textvec stats [options]

DESCRIPTION:
    Show row counts per table and the most recent ingestion runs.

OPTIONS:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	db := openDB(cfg)
	defer db.Close()

	stats, err := db.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}
	runs, err := store.NewRunStore(db).List(ctx, runLimit)
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"path":   db.Path(),
			"tables": stats.Tables,
			"runs":   runs,
			"size":   stats.SizeBytes,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("Database Statistics")
	fmt.Println()
	fmt.Printf("Path:  %s\n", db.Path())
	fmt.Printf("Size:  %d bytes\n", stats.SizeBytes)
	fmt.Println()

	names := make([]string, 0, len(stats.Tables))
	for name := range stats.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := stats.Tables[name]
		fmt.Printf("%-20s %8d rows  %5d dims\n", name, t.Rows, t.Dimension)
	}

	if len(runs) == 0 {
		return
	}
	fmt.Printf("\nRecent runs (%d total):\n", stats.RunCount)
	for _, run := range runs {
		fmt.Printf("  %s  %-9s %s  docs=%d rows=%d", run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Status, run.Table, run.Documents, run.Rows)
		if run.Error != "" {
			fmt.Printf("  error=%q", run.Error)
		}
		fmt.Println()
	}
}

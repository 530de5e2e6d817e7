package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/DreamCats/textvec/cmd/textvec/internal"
	"github.com/DreamCats/textvec/internal/config"
	"github.com/DreamCats/textvec/internal/embedding"
	"github.com/DreamCats/textvec/internal/retrieval"
	"github.com/DreamCats/textvec/internal/textindex"
)

// handleSearch implements the search subcommand
func handleSearch(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)

	var topK int
	var mode string
	var jsonOutput, plain, verbose bool

	fs.IntVar(&topK, "k", cfg.Search.TopK, "Number of results to return")
	fs.StringVar(&mode, "mode", cfg.Search.Mode, `Search mode: "vector", "keyword" or "hybrid"`)
	fs.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	fs.BoolVar(&plain, "plain", false, "Print results as \"text\\n\\t- source\" blocks")
	fs.BoolVar(&verbose, "v", false, "Show scores")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    textvec search [options] "<query>"

DESCRIPTION:
    Embed the query and return the most similar stored chunks.
    keyword and hybrid modes need search.text_index (see "textvec index").

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    textvec search "what is a priori knowledge"
    textvec search "categories of understanding" -k 3 -v
    textvec search "space and time" -mode hybrid -json
`)
	}

	words, err := internal.ParseInterspersed(fs, args)
	if err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if len(words) == 0 {
		fmt.Fprintf(os.Stderr, "Error: search query is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	query := strings.Join(words, " ")

	searchMode, err := retrieval.ParseMode(mode)
	if err != nil {
		log.Fatalf("%v", err)
	}

	db := openDB(cfg)
	defer db.Close()
	table, err := db.OpenTable(ctx, cfg.Database.Table)
	if err != nil {
		log.Fatalf("Failed to open table (run `textvec ingest` first): %v", err)
	}

	var keywords *textindex.Index
	if searchMode != retrieval.ModeVector {
		if cfg.Search.TextIndex == "" {
			log.Fatalf("%s search needs search.text_index in the config", searchMode)
		}
		keywords, err = textindex.Open(cfg.Search.TextIndex)
		if err != nil {
			log.Fatalf("Failed to open text index (run `textvec index`): %v", err)
		}
		defer keywords.Close()
	}

	var embedder retrieval.QueryEmbedder
	if searchMode != retrieval.ModeKeyword {
		embedder = loadEmbedder(ctx, cfg)
	} else {
		embedder = unavailableEmbedder{}
	}

	opts := retrieval.DefaultSearchOptions()
	opts.TopK = topK
	opts.Mode = searchMode

	results, err := retrieval.NewRetriever(table, embedder, keywords).Retrieve(ctx, query, opts)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	switch {
	case jsonOutput:
		outputJSON(results, query)
	case plain:
		fmt.Println(strings.Join(retrieval.FormatAll(results), "\n\n"))
	default:
		outputText(results, query, verbose)
	}
}

// unavailableEmbedder stands in for the model in keyword mode.
type unavailableEmbedder struct{}

func (unavailableEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: not loaded in keyword mode", embedding.ErrModelUnavailable)
}

// outputText outputs search results as human-readable text
func outputText(results []retrieval.Result, query string, verbose bool) {
	if len(results) == 0 {
		fmt.Println("No results found")
		return
	}

	fmt.Printf("Found %d result(s) for: %s\n\n", len(results), query)

	bold := color.New(color.Bold)
	faint := color.New(color.Faint)
	for i, res := range results {
		bold.Printf("%d. ", i+1)
		fmt.Println(res.Text)
		faint.Printf("\t- %s\n", res.Source)
		if res.Comment != "" {
			faint.Printf("\t  %s\n", res.Comment)
		}
		if verbose {
			if res.VectorScore != 0 {
				fmt.Printf("   Vector:  %.3f\n", res.VectorScore)
			}
			if res.KeywordScore != 0 {
				fmt.Printf("   Keyword: %.3f\n", res.KeywordScore)
			}
			color.Cyan("   Score:   %.3f", res.Score)
		}
		fmt.Println()
	}
}

// outputJSON outputs search results as JSON
func outputJSON(results []retrieval.Result, query string) {
	output := map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	}

	jsonData, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal results: %v", err)
	}

	fmt.Println(string(jsonData))
}

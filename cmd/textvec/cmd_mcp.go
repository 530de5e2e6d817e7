package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/DreamCats/textvec/cmd/textvec/internal"
	"github.com/DreamCats/textvec/internal/config"
	"github.com/DreamCats/textvec/internal/mcpserver"
)

// handleMCP implements the MCP stdio server subcommand
func handleMCP(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    textvec mcp

DESCRIPTION:
    Run an MCP stdio server exposing:
      - textvec_retrieve
      - textvec_index
      - textvec_status
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	// stdout carries the protocol.
	log.SetOutput(os.Stderr)

	embedder := loadEmbedder(ctx, cfg)
	db := openDB(cfg)
	defer db.Close()

	server := mcpserver.New(cfg, db, embedder, internal.Version)
	if err := server.Run(ctx); err != nil {
		db.Close()
		log.Fatalf("MCP server failed: %v", err)
	}
}

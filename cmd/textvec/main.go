package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/DreamCats/textvec/cmd/textvec/internal"
	"github.com/DreamCats/textvec/internal/config"
	"github.com/DreamCats/textvec/internal/embedding"
	"github.com/DreamCats/textvec/internal/store"
)

// main 启动 textvec 命令行工具，解析全局参数并执行对应子命令。
func main() {
	if len(os.Args) < 2 {
		internal.PrintUsage()
		os.Exit(1)
	}

	configPath := ""
	dbPath := ""
	args := os.Args[1:]

	validSubcommands := map[string]bool{
		"ingest": true,
		"search": true,
		"index":  true,
		"stats":  true,
		"mcp":    true,
	}

	subcommandIndex := -1
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") && validSubcommands[arg] {
			subcommandIndex = i
			break
		}
	}

	globalFlags := args
	if subcommandIndex >= 0 {
		globalFlags = args[:subcommandIndex]
	}
	for i := 0; i < len(globalFlags); i++ {
		flag := globalFlags[i]
		switch flag {
		case "-config", "--config":
			if i+1 < len(globalFlags) {
				configPath = globalFlags[i+1]
				i++
			}
		case "-db", "--db":
			if i+1 < len(globalFlags) {
				dbPath = globalFlags[i+1]
				i++
			}
		case "-h", "-help", "--help":
			internal.PrintUsage()
			os.Exit(0)
		case "-v", "-version", "--version":
			fmt.Printf("textvec version %s\n", internal.Version)
			os.Exit(0)
		default:
			if strings.HasPrefix(flag, "-") {
				fmt.Fprintf(os.Stderr, "Error: Unknown global flag: %s\n\n", flag)
				internal.PrintUsage()
				os.Exit(1)
			}
		}
	}

	if subcommandIndex == -1 {
		fmt.Fprintf(os.Stderr, "Error: No subcommand specified\n\n")
		internal.PrintUsage()
		os.Exit(1)
	}

	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		if config.IsConfigNotFound(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			internal.PrintConfigExample()
			os.Exit(1)
		}
		log.Fatalf("Failed to load config: %v\n", err)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
		if err := cfg.Finalize(); err != nil {
			log.Fatalf("Invalid -db: %v", err)
		}
	}

	subcommand := args[subcommandIndex]
	subcommandArgs := args[subcommandIndex+1:]

	if subcommand == "ingest" || subcommand == "index" {
		if err := internal.SetupLogging(subcommand, cfg.Database.Path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize log file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch subcommand {
	case "ingest":
		handleIngest(ctx, cfg, subcommandArgs)
	case "search":
		handleSearch(ctx, cfg, subcommandArgs)
	case "index":
		handleIndex(ctx, cfg, subcommandArgs)
	case "stats":
		handleStats(ctx, cfg, subcommandArgs)
	case "mcp":
		handleMCP(ctx, cfg, subcommandArgs)
	}
}

// openDB opens the database or exits.
func openDB(cfg *config.Config) *store.DB {
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	return db
}

// loadEmbedder builds the embedding service and waits for the model to answer.
func loadEmbedder(ctx context.Context, cfg *config.Config) *embedding.Service {
	svc, err := embedding.NewService(&cfg.Embedding)
	if err != nil {
		log.Fatalf("Failed to create embedding service: %v", err)
	}
	loadCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second)
	defer cancel()
	if err := svc.Load(loadCtx); err != nil {
		log.Fatalf("Failed to load embedding model %s: %v", svc.Model(), err)
	}
	return svc
}

package mcpserver

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DreamCats/textvec/internal/config"
	"github.com/DreamCats/textvec/internal/retrieval"
	"github.com/DreamCats/textvec/internal/store"
	"github.com/DreamCats/textvec/internal/textindex"
)

// Server exposes retrieval over the stored embeddings via MCP stdio.
type Server struct {
	cfg      *config.Config
	db       *store.DB
	embedder retrieval.QueryEmbedder
	version  string

	// mu guards the keyword index directory; bleve holds a file lock while open.
	mu sync.Mutex
}

// New creates a new MCP server wrapper. embedder must already be loaded.
func New(cfg *config.Config, db *store.DB, embedder retrieval.QueryEmbedder, version string) *Server {
	return &Server{
		cfg:      cfg,
		db:       db,
		embedder: embedder,
		version:  version,
	}
}

// MCPServer builds the MCP server with all tools registered.
func (s *Server) MCPServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "textvec",
		Title:   "textvec",
		Version: s.version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: "textvec_retrieve",
		Description: `Retrieve the stored passages most similar to a query.

Returns up to top_k results, best first. "documents" holds each result as the
passage text followed by a line "\t- <source>", ready to paste into a prompt.

Modes:
- vector: embedding similarity (default)
- keyword: full-text match, needs the keyword index
- hybrid: weighted mix of both`,
	}, s.retrieveTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "textvec_index",
		Description: "Rebuild the keyword index from every stored row. Needed after ingesting if keyword or hybrid search returns stale rows.",
	}, s.indexTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "textvec_status",
		Description: "Show table sizes, whether the keyword index exists, and the most recent ingestion runs.",
	}, s.statusTool)

	return server
}

// Run starts the MCP stdio server.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer().Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) retrieveTool(ctx context.Context, _ *mcp.CallToolRequest, input RetrieveInput) (*mcp.CallToolResult, RetrieveOutput, error) {
	if input.Query == "" {
		return nil, RetrieveOutput{}, fmt.Errorf("query is required")
	}

	opts := retrieval.DefaultSearchOptions()
	opts.TopK = pickInt(input.TopK, s.cfg.Search.TopK)
	if opts.TopK > retrieval.MaxTopK {
		return nil, RetrieveOutput{}, fmt.Errorf("top_k must be at most %d", retrieval.MaxTopK)
	}
	mode := input.Mode
	if mode == "" {
		mode = s.cfg.Search.Mode
	}
	var err error
	if opts.Mode, err = retrieval.ParseMode(mode); err != nil {
		return nil, RetrieveOutput{}, err
	}

	table, err := s.db.OpenTable(ctx, s.cfg.Database.Table)
	if err != nil {
		return nil, RetrieveOutput{}, fmt.Errorf("no ingested table %q: %w", s.cfg.Database.Table, err)
	}

	var keywords *textindex.Index
	if opts.Mode != retrieval.ModeVector {
		if s.cfg.Search.TextIndex == "" {
			return nil, RetrieveOutput{}, fmt.Errorf("%s search needs search.text_index in the config", opts.Mode)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		keywords, err = textindex.Open(s.cfg.Search.TextIndex)
		if err != nil {
			return nil, RetrieveOutput{}, fmt.Errorf("keyword index unavailable, call textvec_index: %w", err)
		}
		defer keywords.Close()
	}

	results, err := retrieval.NewRetriever(table, s.embedder, keywords).Retrieve(ctx, input.Query, opts)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	return nil, RetrieveOutput{
		Query:     input.Query,
		Count:     len(results),
		Documents: retrieval.FormatAll(results),
		Results:   results,
	}, nil
}

func (s *Server) indexTool(ctx context.Context, _ *mcp.CallToolRequest, _ IndexInput) (*mcp.CallToolResult, IndexOutput, error) {
	dir := s.cfg.Search.TextIndex
	if dir == "" {
		return nil, IndexOutput{}, fmt.Errorf("search.text_index is not configured")
	}
	table, err := s.db.OpenTable(ctx, s.cfg.Database.Table)
	if err != nil {
		return nil, IndexOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := textindex.Rebuild(ctx, dir, table.Rows(ctx))
	if err != nil {
		return nil, IndexOutput{}, err
	}
	return nil, IndexOutput{Path: dir, Rows: n}, nil
}

func (s *Server) statusTool(ctx context.Context, _ *mcp.CallToolRequest, input StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	stats, err := s.db.Stats(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	runs, err := store.NewRunStore(s.db).List(ctx, pickInt(input.Runs, 5))
	if err != nil {
		return nil, StatusOutput{}, err
	}

	output := StatusOutput{
		DatabasePath: s.db.Path(),
		DatabaseSize: formatBytes(stats.SizeBytes),
		Tables:       make([]TableStatus, 0, len(stats.Tables)),
		Runs:         make([]RunStatus, 0, len(runs)),
	}
	names := make([]string, 0, len(stats.Tables))
	for name := range stats.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := stats.Tables[name]
		output.Tables = append(output.Tables, TableStatus{Name: name, Dimension: t.Dimension, Rows: t.Rows})
	}
	for _, run := range runs {
		item := RunStatus{
			ID:        run.ID,
			Table:     run.Table,
			Source:    run.Source,
			Status:    run.Status,
			Documents: run.Documents,
			Rows:      run.Rows,
			Error:     run.Error,
			StartedAt: run.StartedAt.UTC().Format(time.RFC3339),
		}
		if !run.FinishedAt.IsZero() {
			item.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
		}
		output.Runs = append(output.Runs, item)
	}
	if len(runs) > 0 {
		output.LastIngestedAgo = formatDuration(time.Since(runs[0].StartedAt))
	}
	if dir := s.cfg.Search.TextIndex; dir != "" {
		if _, err := os.Stat(dir); err == nil {
			output.KeywordIndex = true
			output.KeywordIndexRows = s.keywordRows(dir)
		}
	}
	return nil, output, nil
}

// keywordRows returns the keyword index size, or 0 if it cannot be opened.
func (s *Server) keywordRows(dir string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := textindex.Open(dir)
	if err != nil {
		return 0
	}
	defer idx.Close()
	n, err := idx.Count()
	if err != nil {
		return 0
	}
	return n
}

// formatBytes formats bytes to human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats duration to human-readable string
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1f hours", d.Hours())
	}
	return fmt.Sprintf("%.1f days", d.Hours()/24)
}

func pickInt(input int, fallback int) int {
	if input > 0 {
		return input
	}
	return fallback
}

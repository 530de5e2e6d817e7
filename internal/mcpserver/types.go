package mcpserver

import "github.com/DreamCats/textvec/internal/retrieval"

// RetrieveInput defines inputs for the textvec_retrieve MCP tool.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"text to find similar passages for"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results to return (default 10)"`
	Mode  string `json:"mode,omitempty" jsonschema:"vector, keyword or hybrid (default from config)"`
}

// RetrieveOutput is the output for textvec_retrieve. Documents holds each
// result rendered as the chunk text followed by an indented source line.
type RetrieveOutput struct {
	Query     string             `json:"query"`
	Count     int                `json:"count"`
	Documents []string           `json:"documents"`
	Results   []retrieval.Result `json:"results"`
}

// IndexInput defines inputs for the textvec_index MCP tool.
type IndexInput struct{}

// IndexOutput is the output for textvec_index.
type IndexOutput struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// StatusInput defines inputs for the textvec_status MCP tool.
type StatusInput struct {
	Runs int `json:"runs,omitempty" jsonschema:"number of recent ingestion runs to include (default 5)"`
}

// TableStatus describes one vector table.
type TableStatus struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Rows      int64  `json:"rows"`
}

// RunStatus describes one ingestion run.
type RunStatus struct {
	ID         string `json:"id"`
	Table      string `json:"table"`
	Source     string `json:"source,omitempty"`
	Status     string `json:"status"`
	Documents  int    `json:"documents"`
	Rows       int    `json:"rows"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// StatusOutput is the output for textvec_status.
type StatusOutput struct {
	DatabasePath     string        `json:"database_path"`
	DatabaseSize     string        `json:"database_size"`
	Tables           []TableStatus `json:"tables"`
	Runs             []RunStatus   `json:"runs"`
	KeywordIndex     bool          `json:"keyword_index"`
	KeywordIndexRows uint64        `json:"keyword_index_rows,omitempty"`
	LastIngestedAgo  string        `json:"last_ingested_ago,omitempty"`
}

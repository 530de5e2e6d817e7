package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultDimensions matches all-mpnet-base-v2 class sentence models.
	DefaultDimensions = 768
	DefaultTable      = "embeddings"
	DefaultChunkSize  = 2000
)

// Config holds the application configuration
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"database"`
	Splitter  SplitterConfig  `yaml:"splitter,omitempty"`
	Ingest    IngestConfig    `yaml:"ingest,omitempty"`
	Search    SearchConfig    `yaml:"search,omitempty"`
}

// EmbeddingConfig holds embedding service configuration
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "ollama" | "openai"

	APIKey   string `yaml:"api_key,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Model    string `yaml:"model"`

	Dimensions     int `yaml:"dimensions"`
	BatchSize      int `yaml:"batch_size"`
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// DatabaseConfig holds vector database configuration
type DatabaseConfig struct {
	// Path to the database directory (or a .db file).
	// If empty, uses ./text-embeddings-db
	Path      string `yaml:"path,omitempty"`
	Table     string `yaml:"table,omitempty"`
	Overwrite *bool  `yaml:"overwrite,omitempty"` // nil means true
}

// SplitterConfig holds text splitting options
type SplitterConfig struct {
	Kind         string   `yaml:"kind,omitempty"` // "character" | "recursive"
	ChunkSize    int      `yaml:"chunk_size,omitempty"`
	ChunkOverlap int      `yaml:"chunk_overlap,omitempty"`
	Separator    *string  `yaml:"separator,omitempty"` // "" splits between characters
	Separators   []string `yaml:"separators,omitempty"` // recursive only
}

// CharacterSeparator returns the character splitter separator, "\n" if unset.
func (s SplitterConfig) CharacterSeparator() string {
	if s.Separator == nil {
		return "\n"
	}
	return *s.Separator
}

// IngestConfig holds per-run document options
type IngestConfig struct {
	Input         string   `yaml:"input,omitempty"`
	Include       []string `yaml:"include,omitempty"` // doublestar patterns, relative to Input
	Source        string   `yaml:"source,omitempty"`
	Comment       string   `yaml:"comment,omitempty"`
	StoreFullText bool     `yaml:"store_full_text,omitempty"`
	Workers       int      `yaml:"workers,omitempty"`
	NoProgress    bool     `yaml:"no_progress,omitempty"`
}

// SearchConfig holds retrieval options
type SearchConfig struct {
	TopK      int    `yaml:"top_k,omitempty"`
	Mode      string `yaml:"mode,omitempty"`       // "vector" | "keyword" | "hybrid"
	TextIndex string `yaml:"text_index,omitempty"` // bleve index directory, empty disables
}

// ShouldOverwrite reports whether each run recreates the table.
func (d DatabaseConfig) ShouldOverwrite() bool {
	return d.Overwrite == nil || *d.Overwrite
}

// DefaultPath returns ~/.textvec/config/textvec.yaml
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".textvec", "config", "textvec.yaml")
}

// Load loads configuration from the default config file
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".textvec", "config", "textvec.yaml")
	return LoadFromFile(configPath)
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigNotFoundError{
				RequestedPath: path,
				DefaultPath:   DefaultPath(),
			}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML without applying defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// Finalize applies defaults and validates. Call it again after overriding
// fields from flags.
func (c *Config) Finalize() error {
	if err := c.applyDefaults(); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ConfigNotFoundError is returned when config file is not found
type ConfigNotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s\n\nDefault location: %s\n\nYou can:\n"+
		"  1. Create the config file at the default location\n"+
		"  2. Specify a custom path with -config flag\n"+
		"  3. Run 'textvec ingest' once to write a default template",
		e.RequestedPath, e.DefaultPath)
}

// IsConfigNotFound checks if error is config not found
func IsConfigNotFound(err error) bool {
	_, ok := err.(*ConfigNotFoundError)
	return ok
}

// expandPath expands ~ and $HOME to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() error {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Embedding.Model == "" {
		switch c.Embedding.Provider {
		case "openai":
			c.Embedding.Model = "text-embedding-3-small"
		default:
			c.Embedding.Model = "nomic-embed-text"
		}
	}
	if c.Embedding.Endpoint == "" && c.Embedding.Provider == "ollama" {
		c.Embedding.Endpoint = "http://localhost:11434"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = DefaultDimensions
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 16
	}
	if c.Embedding.TimeoutSeconds == 0 {
		c.Embedding.TimeoutSeconds = 60
	}

	if c.Database.Path == "" {
		c.Database.Path = "./text-embeddings-db"
	}
	c.Database.Path = expandPath(c.Database.Path)
	if c.Database.Table == "" {
		c.Database.Table = DefaultTable
	}

	if c.Splitter.Kind == "" {
		c.Splitter.Kind = "character"
	}
	if c.Splitter.ChunkSize == 0 {
		c.Splitter.ChunkSize = DefaultChunkSize
	}
	if c.Splitter.Separator == nil {
		sep := "\n"
		c.Splitter.Separator = &sep
	}
	if len(c.Splitter.Separators) == 0 {
		c.Splitter.Separators = []string{"\n\n", "\n", " ", ""}
	}

	if c.Ingest.Input != "" {
		c.Ingest.Input = expandPath(c.Ingest.Input)
	}
	if c.Ingest.Workers == 0 {
		c.Ingest.Workers = 1
	}

	if c.Search.TopK == 0 {
		c.Search.TopK = 10
	}
	if c.Search.Mode == "" {
		c.Search.Mode = "vector"
	}
	if c.Search.TextIndex != "" {
		c.Search.TextIndex = expandPath(c.Search.TextIndex)
	}

	return nil
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedTable reports names taken by the database's bookkeeping tables.
func reservedTable(name string) bool {
	lower := strings.ToLower(name)
	switch lower {
	case "runs", "vector_tables", "schema_version":
		return true
	}
	return strings.HasPrefix(lower, "sqlite_")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "ollama":
		if c.Embedding.Endpoint == "" {
			return fmt.Errorf("ollama provider requires endpoint")
		}
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("openai provider requires api_key (or OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}

	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got: %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 256 {
		return fmt.Errorf("batch_size must be between 1 and 256, got: %d", c.Embedding.BatchSize)
	}

	if !identPattern.MatchString(c.Database.Table) {
		return fmt.Errorf("table name %q is not a valid identifier", c.Database.Table)
	}
	if reservedTable(c.Database.Table) {
		return fmt.Errorf("table name %q is reserved", c.Database.Table)
	}

	switch c.Splitter.Kind {
	case "character", "recursive":
	default:
		return fmt.Errorf("unsupported splitter kind: %s", c.Splitter.Kind)
	}
	if c.Splitter.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be greater than zero, got: %d", c.Splitter.ChunkSize)
	}
	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got: %d", c.Splitter.ChunkOverlap)
	}

	if c.Ingest.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got: %d", c.Ingest.Workers)
	}

	switch c.Search.Mode {
	case "vector", "keyword", "hybrid":
	default:
		return fmt.Errorf("unsupported search mode: %s", c.Search.Mode)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got: %d", c.Search.TopK)
	}

	return nil
}

const defaultConfigTemplate = `# textvec configuration
#
# Default location: $HOME/.textvec/config/textvec.yaml

embedding:
  # Provider: "ollama" (local model server) or "openai"
  provider: ollama
  endpoint: http://localhost:11434
  model: nomic-embed-text
  dimensions: 768
  batch_size: 16

  # OpenAI configuration (alternative)
  # provider: openai
  # api_key: your-openai-api-key
  # model: text-embedding-3-small

database:
  path: ./text-embeddings-db
  table: embeddings
  # false appends to the existing table instead of recreating it
  overwrite: true

splitter:
  kind: character      # or "recursive"
  chunk_size: 2000
  chunk_overlap: 0
  separator: "\n"

ingest:
  input: test-doc.txt
  source: ""
  comment: ""
  store_full_text: false
  workers: 1

search:
  top_k: 10
  mode: vector # vector, keyword or hybrid
  # text_index: ./text-embeddings-db/keyword.bleve
`

// WriteDefaultTemplate creates a default configuration file if it does not exist.
// It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}

package internal

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/DreamCats/textvec/internal/config"
)

// LoadConfig 读取 .env 与 YAML 配置文件。
// 未显式指定 -config 且默认配置不存在时，写出模板并使用默认配置继续运行。
func LoadConfig(configPath string) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("Warning: %v", err)
	}

	if configPath != "" {
		return config.LoadFromFile(configPath)
	}

	cfg, err := config.Load()
	if err == nil {
		return cfg, nil
	}
	var notFound *config.ConfigNotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	created, createErr := config.WriteDefaultTemplate(notFound.RequestedPath)
	if createErr != nil {
		log.Printf("Warning: failed to create default config at %s: %v", notFound.RequestedPath, createErr)
	} else if created {
		fmt.Fprintf(os.Stderr, "Created default config at %s\n", notFound.RequestedPath)
	}
	return DefaultConfig()
}

// DefaultConfig 返回仅由环境变量与内置默认值构成的配置。
func DefaultConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PrintConfigExample 向 stderr 打印一份完整的 YAML 配置示例。
func PrintConfigExample() {
	fmt.Fprintf(os.Stderr, `Create a configuration file at %s:

embedding:
  provider: ollama              # "ollama" | "openai"
  endpoint: http://localhost:11434
  model: nomic-embed-text
  dimensions: 768

database:
  path: ./text-embeddings-db
  table: embeddings
  overwrite: true

splitter:
  kind: character               # "character" | "recursive"
  chunk_size: 2000

ingest:
  input: test-doc.txt
  source: "Immanuel Kant, Critique of Pure Reason"
  comment: "Taken from gutenberg"

Environment variables TEXTVEC_PROVIDER, TEXTVEC_API_KEY, TEXTVEC_ENDPOINT,
TEXTVEC_MODEL and TEXTVEC_DB_PATH override the file. A .env file in the
working directory is loaded first.
`, config.DefaultPath())
}

package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvOverrides are read from TEXTVEC_* variables and win over the file.
type EnvOverrides struct {
	APIKey   string `envconfig:"API_KEY"`
	Endpoint string `envconfig:"ENDPOINT"`
	Model    string `envconfig:"MODEL"`
	Provider string `envconfig:"PROVIDER"`
	DBPath   string `envconfig:"DB_PATH"`
}

// LoadDotEnv loads variables from the given .env files (or ./.env). Missing
// files are ignored; variables already set in the process are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv overlays TEXTVEC_* variables onto cfg. OPENAI_API_KEY is used as
// a fallback key for the openai provider.
func ApplyEnv(cfg *Config) error {
	var env EnvOverrides
	if err := envconfig.Process("textvec", &env); err != nil {
		return err
	}
	if env.Provider != "" {
		cfg.Embedding.Provider = env.Provider
	}
	if env.APIKey != "" {
		cfg.Embedding.APIKey = env.APIKey
	}
	if env.Endpoint != "" {
		cfg.Embedding.Endpoint = env.Endpoint
	}
	if env.Model != "" {
		cfg.Embedding.Model = env.Model
	}
	if env.DBPath != "" {
		cfg.Database.Path = env.DBPath
	}
	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return nil
}

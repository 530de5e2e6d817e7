package internal

import (
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringList(t *testing.T) {
	var list StringList
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.Var(&list, "include", "")
	require.NoError(t, fs.Parse([]string{"-include", "*.txt", "-include", "**/*.md"}))
	assert.Equal(t, StringList{"*.txt", "**/*.md"}, list)
	assert.Equal(t, "*.txt,**/*.md", list.String())
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "db", sanitizeName(""))
	assert.Equal(t, "text-embeddings-db", sanitizeName("text-embeddings-db"))
	assert.Equal(t, "my_notes.db", sanitizeName("my notes.db"))
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("TEXTVEC_DB_PATH", "/tmp/textvec-test-db")
	t.Setenv("TEXTVEC_PROVIDER", "")
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/textvec-test-db", cfg.Database.Path)
	assert.Equal(t, "embeddings", cfg.Database.Table)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.True(t, cfg.Database.ShouldOverwrite())
}

func TestParseInterspersed(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		words []string
		k     int
		mode  string
		json  bool
	}{
		{"flags first", []string{"-k", "3", "-mode", "hybrid", "space and time"}, []string{"space and time"}, 3, "hybrid", false},
		{"flags after query", []string{"space and time", "-mode", "hybrid", "-json"}, []string{"space and time"}, 10, "hybrid", true},
		{"mixed", []string{"categories", "-k", "3", "of", "understanding", "-json"}, []string{"categories", "of", "understanding"}, 3, "vector", true},
		{"double dash", []string{"-k", "2", "--", "-json", "literal"}, []string{"-json", "literal"}, 2, "vector", false},
		{"no query", []string{"-json"}, nil, 10, "vector", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("search", flag.ContinueOnError)
			k := fs.Int("k", 10, "")
			mode := fs.String("mode", "vector", "")
			jsonOut := fs.Bool("json", false, "")

			words, err := ParseInterspersed(fs, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.words, words)
			assert.Equal(t, tt.k, *k)
			assert.Equal(t, tt.mode, *mode)
			assert.Equal(t, tt.json, *jsonOut)
		})
	}
}

func TestParseInterspersedBadFlag(t *testing.T) {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.String("mode", "vector", "")
	_, err := ParseInterspersed(fs, []string{"hello", "-bogus"})
	assert.Error(t, err)
}

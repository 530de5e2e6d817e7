// Package ingest turns text documents into embedded rows of a vector table.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unicode/utf8"

	"github.com/DreamCats/textvec/internal/embedding"
)

// ErrFileNotFound is returned when an input document does not exist.
var ErrFileNotFound = errors.New("file not found")

// Document is one input text with the metadata attached to all of its rows.
type Document struct {
	Path    string
	Content string
	Source  string
	Comment string
}

// LoadDocument reads the whole file at path.
func LoadDocument(path, source, comment string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return Document{}, fmt.Errorf("%w: %s is not valid UTF-8", embedding.ErrEncoding, path)
	}
	return Document{
		Path:    path,
		Content: string(data),
		Source:  source,
		Comment: comment,
	}, nil
}

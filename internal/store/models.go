package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Row is the persisted unit of a vector table.
type Row struct {
	Vector []float32
	Text   string
	Meta   string // JSON {"source": ..., "comment": ...}
}

// StoredRow is a row read back from a table.
type StoredRow struct {
	ID        int64
	Row
	CreatedAt time.Time
}

// ScoredRow is a search hit. Score is the cosine similarity to the query.
type ScoredRow struct {
	StoredRow
	Score float64
}

// Meta is the decoded form of Row.Meta.
type Meta struct {
	Source  string `json:"source"`
	Comment string `json:"comment"`
}

// Encode renders the meta column value.
func (m Meta) Encode() string {
	// Marshal of two strings cannot fail.
	data, _ := json.Marshal(m)
	return string(data)
}

// ParseMeta decodes and checks a meta column value. The object must have
// exactly the string keys "source" and "comment".
func ParseMeta(raw string) (Meta, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Meta{}, fmt.Errorf("%w: meta is not a JSON object: %v", ErrSchemaMismatch, err)
	}
	if len(fields) != 2 {
		return Meta{}, fmt.Errorf("%w: meta must have exactly the keys source and comment", ErrSchemaMismatch)
	}

	var meta Meta
	for key, dst := range map[string]*string{"source": &meta.Source, "comment": &meta.Comment} {
		value, ok := fields[key]
		if !ok {
			return Meta{}, fmt.Errorf("%w: meta is missing %q", ErrSchemaMismatch, key)
		}
		if !bytes.HasPrefix(bytes.TrimSpace(value), []byte(`"`)) {
			return Meta{}, fmt.Errorf("%w: meta %q must be a string", ErrSchemaMismatch, key)
		}
		if err := json.Unmarshal(value, dst); err != nil {
			return Meta{}, fmt.Errorf("%w: meta %q: %v", ErrSchemaMismatch, key, err)
		}
	}
	return meta, nil
}

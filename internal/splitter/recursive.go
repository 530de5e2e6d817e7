package splitter

import (
	"iter"
	"strings"
)

// DefaultSeparators go from paragraph to character boundaries.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Recursive tries each separator in turn and re-splits any piece that is
// still too long with the next one. Separators stay attached to the start of
// the following piece.
type Recursive struct {
	separators []string
	opts       Options
}

// NewRecursive creates a boundary-aware splitter. With an empty separator
// last in the list every chunk respects the chunk size.
func NewRecursive(separators []string, opts Options) (*Recursive, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Recursive{separators: separators, opts: opts}, nil
}

// Chunks yields chunks in document order.
func (r *Recursive) Chunks(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		r.split(text, r.separators, yield)
	}
}

// Split returns all chunks.
func (r *Recursive) Split(text string) []string {
	return collect(r.Chunks(text))
}

func (r *Recursive) split(text string, separators []string, yield func(string) bool) bool {
	sep := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			sep = ""
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	// Separators are kept on the pieces, so pieces are merged with no joiner.
	m := newMerger("", r.opts)
	for _, piece := range splitKeepSeparator(text, sep) {
		if runeLen(piece) < r.opts.ChunkSize {
			if !m.add(piece, yield) {
				return false
			}
			continue
		}
		if !m.flush(yield) {
			return false
		}
		if len(rest) == 0 {
			if doc := strings.TrimSpace(piece); doc != "" && !yield(doc) {
				return false
			}
			continue
		}
		if !r.split(piece, rest, yield) {
			return false
		}
	}
	return m.flush(yield)
}

func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

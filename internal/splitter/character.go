package splitter

import (
	"iter"
	"strings"
)

// Character splits on a single separator and merges the pieces up to the
// chunk size. A piece longer than the chunk size is emitted whole.
type Character struct {
	separator string
	opts      Options
}

// NewCharacter creates a separator based splitter.
func NewCharacter(separator string, opts Options) (*Character, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Character{separator: separator, opts: opts}, nil
}

// Chunks streams chunks without materializing the full piece list.
func (c *Character) Chunks(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		m := newMerger(c.separator, c.opts)
		for piece := range c.pieces(text) {
			if piece == "" {
				continue
			}
			if !m.add(piece, yield) {
				return
			}
		}
		m.flush(yield)
	}
}

// Split returns all chunks.
func (c *Character) Split(text string) []string {
	return collect(c.Chunks(text))
}

func (c *Character) pieces(text string) iter.Seq[string] {
	if c.separator == "" {
		return func(yield func(string) bool) {
			for _, r := range text {
				if !yield(string(r)) {
					return
				}
			}
		}
	}
	return strings.SplitSeq(text, c.separator)
}

// Package splitter breaks document text into bounded chunks for embedding.
package splitter

import (
	"fmt"
	"iter"
	"log"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/DreamCats/textvec/internal/config"
)

// Splitter turns a long text into ordered chunks of at most ChunkSize
// characters (best effort for the separator-based variant).
type Splitter interface {
	// Chunks yields chunks lazily. Each range over the result splits again.
	Chunks(text string) iter.Seq[string]
	Split(text string) []string
}

// Options are shared by all splitters.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

func (o Options) validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", o.ChunkSize)
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be in [0, %d)", o.ChunkOverlap, o.ChunkSize)
	}
	return nil
}

// New builds the splitter selected by cfg.Kind.
func New(cfg config.SplitterConfig) (Splitter, error) {
	opts := Options{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap}
	switch cfg.Kind {
	case "", "character":
		return NewCharacter(cfg.CharacterSeparator(), opts)
	case "recursive":
		return NewRecursive(cfg.Separators, opts)
	default:
		return nil, fmt.Errorf("unsupported splitter kind: %s", cfg.Kind)
	}
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// merger packs pieces into chunks joined by sep, carrying up to overlap
// characters of trailing pieces into the next chunk.
type merger struct {
	sep     string
	sepLen  int
	opts    Options
	current []string
	total   int
}

func newMerger(sep string, opts Options) *merger {
	return &merger{sep: sep, sepLen: runeLen(sep), opts: opts}
}

func (m *merger) joinLen() int {
	if len(m.current) > 0 {
		return m.sepLen
	}
	return 0
}

// add appends a piece, emitting a finished chunk first if the piece does not fit.
func (m *merger) add(piece string, yield func(string) bool) bool {
	n := runeLen(piece)
	if m.total+n+m.joinLen() > m.opts.ChunkSize {
		if m.total > m.opts.ChunkSize {
			log.Printf("splitter: created a chunk of size %d, which is longer than the specified %d", m.total, m.opts.ChunkSize)
		}
		if len(m.current) > 0 {
			if doc, ok := m.join(); ok && !yield(doc) {
				return false
			}
			for m.total > m.opts.ChunkOverlap ||
				(m.total+n+m.joinLen() > m.opts.ChunkSize && m.total > 0) {
				drop := runeLen(m.current[0])
				if len(m.current) > 1 {
					drop += m.sepLen
				}
				m.total -= drop
				m.current = m.current[1:]
			}
		}
	}
	m.current = append(m.current, piece)
	m.total += n
	if len(m.current) > 1 {
		m.total += m.sepLen
	}
	return true
}

// flush emits whatever is buffered.
func (m *merger) flush(yield func(string) bool) bool {
	doc, ok := m.join()
	m.current = nil
	m.total = 0
	if ok {
		return yield(doc)
	}
	return true
}

func (m *merger) join() (string, bool) {
	doc := strings.TrimSpace(strings.Join(m.current, m.sep))
	return doc, doc != ""
}

func collect(seq iter.Seq[string]) []string {
	out := slices.Collect(seq)
	if out == nil {
		return []string{}
	}
	return out
}

package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DreamCats/textvec/internal/config"
)

func mustCharacter(t *testing.T, sep string, size, overlap int) *Character {
	t.Helper()
	s, err := NewCharacter(sep, Options{ChunkSize: size, ChunkOverlap: overlap})
	require.NoError(t, err)
	return s
}

func mustRecursive(t *testing.T, size, overlap int) *Recursive {
	t.Helper()
	s, err := NewRecursive(nil, Options{ChunkSize: size, ChunkOverlap: overlap})
	require.NoError(t, err)
	return s
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

const kant = `Human reason has this peculiar fate that in one species of its knowledge it is burdened by questions
which it cannot dismiss, since they are given to it as problems by the nature of reason itself,
but which it also cannot answer, since they transcend every capacity of human reason.

Reason falls into this perplexity through no fault of its own.
It begins from principles whose use is unavoidable in the course of experience
and at the same time sufficiently warranted by it.

With these principles it rises ever higher, to more remote conditions.`

func TestCharacterSplitsOnNewlines(t *testing.T) {
	s := mustCharacter(t, "\n", 1, 0)
	assert.Equal(t, []string{"A", "B", "C"}, s.Split("A\nB\nC"))
}

func TestCharacterMergesUpToChunkSize(t *testing.T) {
	s := mustCharacter(t, "\n", 5, 0)
	assert.Equal(t, []string{"aa\nbb", "cc\ndd", "e"}, s.Split("aa\nbb\ncc\ndd\ne"))
}

func TestCharacterOverrunsOnLongPiece(t *testing.T) {
	s := mustCharacter(t, "\n", 4, 0)
	chunks := s.Split("ab\nlongerline\ncd")
	assert.Equal(t, []string{"ab", "longerline", "cd"}, chunks)
}

func TestCharacterOverlap(t *testing.T) {
	s := mustCharacter(t, " ", 7, 3)
	assert.Equal(t, []string{"aa bb", "bb cc", "cc dd"}, s.Split("aa bb cc dd"))
}

func TestEmptyInputYieldsNothing(t *testing.T) {
	for name, s := range map[string]Splitter{
		"character": mustCharacter(t, "\n", 10, 0),
		"recursive": mustRecursive(t, 10, 0),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, s.Split(""))
			assert.Empty(t, s.Split("\n\n  \n"))
			for range s.Chunks("") {
				t.Fatal("expected no chunks")
			}
		})
	}
}

func TestChunkLargerThanDocument(t *testing.T) {
	doc := "one line\nanother line"
	for name, s := range map[string]Splitter{
		"character": mustCharacter(t, "\n", 1000, 0),
		"recursive": mustRecursive(t, 1000, 0),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, []string{doc}, s.Split(doc))
		})
	}
}

func TestRecursiveRespectsChunkSize(t *testing.T) {
	for _, size := range []int{1, 7, 40, 120} {
		s := mustRecursive(t, size, 0)
		chunks := s.Split(kant)
		require.NotEmpty(t, chunks)
		for _, c := range chunks {
			assert.LessOrEqual(t, runeLen(c), size, "chunk %q", c)
		}
		assert.Equal(t, stripSpace(kant), stripSpace(strings.Join(chunks, "")))
	}
}

func TestCharacterReconstructsContent(t *testing.T) {
	s := mustCharacter(t, "\n", 120, 0)
	chunks := s.Split(kant)
	require.Greater(t, len(chunks), 1)

	lines := strings.Split(kant, "\n")
	longest := 0
	for _, l := range lines {
		longest = max(longest, runeLen(l))
	}
	for _, c := range chunks {
		assert.LessOrEqual(t, runeLen(c), max(120, longest))
	}
	assert.Equal(t, stripSpace(kant), stripSpace(strings.Join(chunks, "")))
}

func TestRecursivePrefersParagraphs(t *testing.T) {
	s := mustRecursive(t, 30, 0)
	chunks := s.Split("first paragraph\n\nsecond paragraph")
	assert.Equal(t, []string{"first paragraph", "second paragraph"}, chunks)
}

func TestRecursiveMultibyte(t *testing.T) {
	s := mustRecursive(t, 3, 0)
	chunks := s.Split("纯粹理性批判")
	assert.Equal(t, []string{"纯粹理", "性批判"}, chunks)
}

func TestChunksIsRestartableAndStoppable(t *testing.T) {
	s := mustCharacter(t, "\n", 1, 0)
	seq := s.Chunks("A\nB\nC")

	var first, second []string
	for c := range seq {
		first = append(first, c)
	}
	for c := range seq {
		second = append(second, c)
		break
	}
	assert.Equal(t, []string{"A", "B", "C"}, first)
	assert.Equal(t, []string{"A"}, second)
}

func TestNewFromConfig(t *testing.T) {
	s, err := New(config.SplitterConfig{Kind: "character", ChunkSize: 1})
	require.NoError(t, err)
	assert.IsType(t, &Character{}, s)
	assert.Equal(t, []string{"A", "B"}, s.Split("A\nB"))

	empty := ""
	s, err = New(config.SplitterConfig{Kind: "character", ChunkSize: 2, Separator: &empty})
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "cd", "e"}, s.Split("abcde"))

	s, err = New(config.SplitterConfig{Kind: "recursive", ChunkSize: 10})
	require.NoError(t, err)
	assert.IsType(t, &Recursive{}, s)

	_, err = New(config.SplitterConfig{Kind: "semantic", ChunkSize: 10})
	assert.Error(t, err)

	_, err = New(config.SplitterConfig{Kind: "character", ChunkSize: 10, ChunkOverlap: 10})
	assert.Error(t, err)
}

package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// wordTokenizer is a deterministic tokenizer for tests: one token per
// space-separated word, with line breaks kept as their own tokens so
// decoding reproduces the original line structure. Exact token offsets
// are therefore easy to reason about.
type wordTokenizer struct {
	words []string
	ids   map[string]int
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{ids: make(map[string]int)}
}

func (t *wordTokenizer) id(word string) int {
	id, ok := t.ids[word]
	if !ok {
		id = len(t.words)
		t.words = append(t.words, word)
		t.ids[word] = id
	}
	return id
}

func (t *wordTokenizer) Encode(text string) []int {
	var out []int
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			out = append(out, t.id("\n"))
		}
		for _, w := range strings.Fields(line) {
			out = append(out, t.id(w))
		}
	}
	return out
}

func (t *wordTokenizer) Decode(tokens []int) string {
	var b strings.Builder
	for _, id := range tokens {
		word := t.words[id]
		if word == "\n" {
			b.WriteString("\n")
			continue
		}
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString(" ")
		}
		b.WriteString(word)
	}
	return b.String()
}

func newTestChunker(cfg Config) *Chunker {
	return New(newWordTokenizer(), cfg, zap.NewNop())
}

// wordsText builds a text of n distinct words.
func wordsText(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%04d", i)
	}
	return strings.Join(parts, " ")
}

func TestChunkTextEmptyInput(t *testing.T) {
	c := newTestChunker(DefaultConfig())

	for _, text := range []string{"", "   ", "\n\t  \n"} {
		_, err := c.ChunkText(text, "text")
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
}

func TestChunkTextSingleSegment(t *testing.T) {
	c := newTestChunker(DefaultConfig())

	segments, err := c.ChunkText("just a few words here", "text")
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, 0, segments[0].Index)
	assert.Equal(t, "just a few words here", segments[0].Content)
	assert.Equal(t, 5, segments[0].Metadata.TokenCount)
	assert.Equal(t, "text", segments[0].Metadata.MaterialFormat)
}

func TestChunkText2500TokensDefaultParams(t *testing.T) {
	c := newTestChunker(DefaultConfig())

	segments, err := c.ChunkText(wordsText(2500), "text")
	require.NoError(t, err)
	require.Len(t, segments, 3)

	for i, seg := range segments {
		assert.Equal(t, i, seg.Index)
	}

	// Windows are [0,1000), [900,1900), [1800,2500).
	assert.Equal(t, 1000, segments[0].Metadata.TokenCount)
	assert.Equal(t, 1000, segments[1].Metadata.TokenCount)
	assert.Equal(t, 700, segments[2].Metadata.TokenCount)

	assert.True(t, strings.HasPrefix(segments[1].Content, "w0900 "))
	assert.True(t, strings.HasPrefix(segments[2].Content, "w1800 "))
	assert.True(t, strings.HasSuffix(segments[0].Content, "w0999"))
	assert.True(t, strings.HasSuffix(segments[1].Content, "w1899"))
	assert.True(t, strings.HasSuffix(segments[2].Content, "w2499"))
}

func TestChunkTextIndicesContiguous(t *testing.T) {
	c := newTestChunker(DefaultConfig())

	for _, n := range []int{1, 999, 1000, 1001, 4321} {
		segments, err := c.ChunkText(wordsText(n), "text")
		require.NoError(t, err)
		for i, seg := range segments {
			assert.Equal(t, i, seg.Index)
			assert.LessOrEqual(t, seg.Metadata.TokenCount, 1000)
		}
	}
}

func TestChunkTextAdjacentOverlap(t *testing.T) {
	c := newTestChunker(DefaultConfig())

	segments, err := c.ChunkText(wordsText(3700), "text")
	require.NoError(t, err)
	require.Greater(t, len(segments), 1)

	for i := 1; i < len(segments); i++ {
		prev := strings.Fields(segments[i-1].Content)
		cur := strings.Fields(segments[i].Content)
		overlap := prev[len(prev)-100:]
		assert.Equal(t, overlap, cur[:100], "segments %d and %d must share 100 tokens", i-1, i)
	}
}

func TestChunkTextMakesProgress(t *testing.T) {
	// Total tokens just barely above max must terminate with two
	// segments, even when the overlap equals the window size.
	cases := []struct {
		cfg    Config
		tokens int
	}{
		{Config{MinTokens: 5, MaxTokens: 10, OverlapTokens: 3}, 11},
		{Config{MinTokens: 5, MaxTokens: 10, OverlapTokens: 10}, 25},
		{Config{MinTokens: 500, MaxTokens: 1000, OverlapTokens: 100}, 1001},
		{Config{MinTokens: 1, MaxTokens: 1, OverlapTokens: 1}, 7},
	}

	for _, tc := range cases {
		c := newTestChunker(tc.cfg)
		segments, err := c.ChunkText(wordsText(tc.tokens), "text")
		require.NoError(t, err)
		require.NotEmpty(t, segments)
		for i, seg := range segments {
			assert.Equal(t, i, seg.Index)
			assert.LessOrEqual(t, seg.Metadata.TokenCount, tc.cfg.MaxTokens)
		}
	}
}

func TestChunkTextPageNumber(t *testing.T) {
	c := newTestChunker(DefaultConfig())

	text := "[PAGE 1]\nintro words here\n\n[PAGE 2]\nmore words follow"
	segments, err := c.ChunkText(text, "pdf")
	require.NoError(t, err)
	require.Len(t, segments, 1)

	// First marker in the segment wins.
	assert.Equal(t, 1, segments[0].Metadata.PageNumber)
	assert.Equal(t, "pdf", segments[0].Metadata.MaterialFormat)
}

func TestChunkTextSectionHeader(t *testing.T) {
	c := newTestChunker(DefaultConfig())

	text := "CHAPTER ONE\nIt was a dark and stormy night.\nThe rest of the story follows."
	segments, err := c.ChunkText(text, "text")
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "CHAPTER ONE", segments[0].Metadata.SectionHeader)
}

func TestChunkTextNoSectionHeaderBeyondThirdLine(t *testing.T) {
	c := newTestChunker(DefaultConfig())

	text := "first line\nsecond line\nthird line\nHIDDEN HEADER\nbody"
	segments, err := c.ChunkText(text, "text")
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Empty(t, segments[0].Metadata.SectionHeader)
}

func TestCountTokens(t *testing.T) {
	c := newTestChunker(DefaultConfig())

	assert.Equal(t, 0, c.CountTokens(""))
	assert.Equal(t, 3, c.CountTokens("three simple words"))
}

func TestIsUpperLine(t *testing.T) {
	assert.True(t, isUpperLine("SECTION 2: RESULTS"))
	assert.False(t, isUpperLine("Section 2: Results"))
	assert.False(t, isUpperLine("1234 ---"))
}

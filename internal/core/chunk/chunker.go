package chunk

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

var (
	// ErrEmptyInput is returned for empty or whitespace-only input text.
	ErrEmptyInput = errors.New("cannot chunk empty text")

	// ErrNoSegments is returned when tokenization yields zero segments
	// despite non-empty input. Should not occur in practice.
	ErrNoSegments = errors.New("no segments were produced from text")
)

var pageMarkerRe = regexp.MustCompile(`\[PAGE (\d+)\]`)

// Config tunes the segmenter, fixed per deployment.
//
// MinTokens is advisory only: the final segment of a text may be
// shorter. MaxTokens is a hard upper bound per segment. OverlapTokens is
// the token span shared by consecutive segments.
type Config struct {
	MinTokens     int
	MaxTokens     int
	OverlapTokens int
}

func DefaultConfig() Config {
	return Config{MinTokens: 500, MaxTokens: 1000, OverlapTokens: 100}
}

// SegmentMeta carries per-segment metadata for retrieval.
type SegmentMeta struct {
	TokenCount     int
	PageNumber     int // 0 when unknown
	SectionHeader  string
	MaterialFormat string
}

// Segment is one token-bounded span of a material's extracted text.
// Indices are zero-based, contiguous and unique within a material.
type Segment struct {
	Content  string
	Index    int
	Metadata SegmentMeta
}

// Chunker converts extracted text into ordered, token-bounded,
// overlapping segments.
type Chunker struct {
	tok Tokenizer
	cfg Config
	log *zap.Logger
}

func New(tok Tokenizer, cfg Config, log *zap.Logger) *Chunker {
	return &Chunker{tok: tok, cfg: cfg, log: log}
}

// ChunkText splits text into segments of at most MaxTokens tokens, each
// consecutive pair overlapping by OverlapTokens. sourceFormat is copied
// into every segment's metadata.
//
// Window starts always move forward: the next window begins at the
// previous window's end minus the overlap, and is forced to the previous
// end whenever that computation would not advance. Windows that decode
// to whitespace are skipped without consuming an index, so indices are
// contiguous over emitted segments.
func (c *Chunker) ChunkText(text string, sourceFormat string) ([]Segment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	tokens := c.tok.Encode(text)
	if len(tokens) == 0 {
		return nil, ErrNoSegments
	}

	var segments []Segment
	index := 0
	start := 0

	for start < len(tokens) {
		end := start + c.cfg.MaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		content := strings.TrimSpace(c.tok.Decode(tokens[start:end]))
		if content != "" {
			segments = append(segments, Segment{
				Content:  content,
				Index:    index,
				Metadata: c.segmentMeta(content, sourceFormat),
			})
			index++
		}

		if end >= len(tokens) {
			break
		}

		next := end - c.cfg.OverlapTokens
		if next <= start {
			next = end
		}
		start = next
	}

	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	c.log.Info("chunked text",
		zap.Int("segments", len(segments)),
		zap.Int("total_tokens", len(tokens)),
		zap.Int("avg_tokens", len(tokens)/len(segments)))

	return segments, nil
}

// CountTokens counts tokens with the same tokenizer used for
// segmentation, so downstream consumers can estimate embedding cost.
func (c *Chunker) CountTokens(text string) int {
	return len(c.tok.Encode(text))
}

func (c *Chunker) segmentMeta(content, sourceFormat string) SegmentMeta {
	meta := SegmentMeta{
		TokenCount:     len(c.tok.Encode(content)),
		MaterialFormat: sourceFormat,
	}

	if m := pageMarkerRe.FindStringSubmatch(content); m != nil {
		if page, err := strconv.Atoi(m[1]); err == nil {
			meta.PageNumber = page
		}
	}

	lines := strings.Split(content, "\n")
	if len(lines) > 3 {
		lines = lines[:3]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && len(line) < 100 && isUpperLine(line) {
			meta.SectionHeader = line
			break
		}
	}

	return meta
}

// isUpperLine reports whether the line contains at least one letter and
// no lowercase letters, matching how section headers are detected.
func isUpperLine(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

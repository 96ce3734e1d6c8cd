package extract

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrUnsupportedFormat is returned when neither the declared MIME type
	// nor the filename extension matches a known format. Fatal; retrying
	// with the same file reproduces it.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrExtractionFailed is returned when a recognized format yields no
	// usable text at all.
	ErrExtractionFailed = errors.New("text extraction failed")
)

// Metadata describes what extraction produced for one document.
// Fields are format-specific; unset fields are zero.
type Metadata struct {
	Format         string `json:"format"`
	PageCount      int    `json:"page_count,omitempty"`
	ExtractedPages int    `json:"extracted_pages,omitempty"`
	Encoding       string `json:"encoding,omitempty"`
	CharCount      int    `json:"char_count,omitempty"`
	ParagraphCount int    `json:"paragraph_count,omitempty"`
}

// Service extracts plain text from uploaded document bytes. It is a pure
// function of its inputs aside from logging.
type Service struct {
	log *zap.Logger
}

func NewService(log *zap.Logger) *Service {
	return &Service{log: log}
}

// Extract converts raw file bytes into plain text plus extraction
// metadata. Dispatch is by declared MIME type, falling back to the
// filename extension when the type is absent or generic.
func (s *Service) Extract(data []byte, mimeType, filename string) (string, Metadata, error) {
	lower := strings.ToLower(filename)

	switch {
	case mimeType == "application/pdf" || strings.HasSuffix(lower, ".pdf"):
		return s.extractPDF(data)
	case mimeType == "text/plain" || mimeType == "text/markdown" ||
		strings.HasSuffix(lower, ".txt") || strings.HasSuffix(lower, ".md"):
		return s.extractText(data)
	case mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
		strings.HasSuffix(lower, ".docx"):
		return s.extractDocx(data)
	default:
		return "", Metadata{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, mimeType, filename)
	}
}

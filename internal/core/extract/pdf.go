package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// PageMarker returns the inline marker prefixed to each extracted PDF
// page. The segmenter recovers page numbers by searching segment text
// for these markers.
func PageMarker(page int) string {
	return fmt.Sprintf("[PAGE %d]", page)
}

// extractPDF concatenates per-page text, each page prefixed with its
// marker and pages joined by blank lines. Pages that fail to extract are
// skipped with a warning; only a document with zero extractable pages
// fails.
func (s *Service) extractPDF(data []byte) (string, Metadata, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", Metadata{}, fmt.Errorf("%w: open pdf: %v", ErrExtractionFailed, err)
	}

	pageCount := reader.NumPage()
	parts := make([]string, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		text, err := extractPage(reader, n)
		if err != nil {
			s.log.Warn("failed to extract pdf page", zap.Int("page", n), zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts = append(parts, PageMarker(n)+"\n"+text)
	}

	if len(parts) == 0 {
		return "", Metadata{}, fmt.Errorf("%w: no text could be extracted from pdf", ErrExtractionFailed)
	}

	meta := Metadata{
		Format:         "pdf",
		PageCount:      pageCount,
		ExtractedPages: len(parts),
	}
	return strings.Join(parts, "\n\n"), meta, nil
}

// extractPage isolates the pdf library's per-page parsing, which panics
// on some malformed content streams; a panic counts as a failed page.
func extractPage(reader *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page parse panic: %v", r)
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is missing", n)
	}
	return page.GetPlainText(nil)
}

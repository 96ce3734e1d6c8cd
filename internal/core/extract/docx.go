package extract

import (
	"bytes"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
)

// extractDocx concatenates the non-empty paragraph text of a Word
// document, trimmed and joined by blank lines.
func (s *Service) extractDocx(data []byte) (string, Metadata, error) {
	body, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return "", Metadata{}, fmt.Errorf("%w: docx: %v", ErrExtractionFailed, err)
	}

	var paragraphs []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paragraphs = append(paragraphs, line)
		}
	}

	if len(paragraphs) == 0 {
		return "", Metadata{}, fmt.Errorf("%w: no text could be extracted from docx", ErrExtractionFailed)
	}

	meta := Metadata{
		Format:         "docx",
		ParagraphCount: len(paragraphs),
	}
	return strings.Join(paragraphs, "\n\n"), meta, nil
}

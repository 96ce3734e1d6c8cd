package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractText decodes a plain text or markdown file, trying encodings in
// a fixed order; the first successful decode wins.
func (s *Service) extractText(data []byte) (string, Metadata, error) {
	text, encoding, err := decodeText(data)
	if err != nil {
		return "", Metadata{}, err
	}

	if strings.TrimSpace(text) == "" {
		return "", Metadata{}, fmt.Errorf("%w: file is empty or contains no text", ErrExtractionFailed)
	}

	meta := Metadata{
		Format:    "text",
		Encoding:  encoding,
		CharCount: len(text),
	}
	return text, meta, nil
}

// decodeText attempts utf-8-sig, utf-8, latin-1 and cp1252 in order.
// Latin-1 maps every byte, so decoding itself cannot fail outright;
// callers still reject whitespace-only results.
func decodeText(data []byte) (string, string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		stripped := data[len(utf8BOM):]
		if utf8.Valid(stripped) {
			return string(stripped), "utf-8-sig", nil
		}
	}
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}
	if text, err := charmap.ISO8859_1.NewDecoder().Bytes(data); err == nil {
		return string(text), "latin-1", nil
	}
	if text, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil {
		return string(text), "cp1252", nil
	}
	return "", "", fmt.Errorf("%w: could not decode text file with any supported encoding", ErrExtractionFailed)
}

package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService() *Service {
	return NewService(zap.NewNop())
}

func TestExtractUnsupportedFormat(t *testing.T) {
	svc := newTestService()

	cases := []struct {
		name     string
		mimeType string
		filename string
	}{
		{"unknown mime and extension", "application/x-zork", "save.zork"},
		{"generic mime unknown extension", "application/octet-stream", "archive.tar.gz"},
		{"image", "image/png", "diagram.png"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Extract([]byte("data"), tc.mimeType, tc.filename)
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
		})
	}
}

func TestExtractTextUTF8(t *testing.T) {
	svc := newTestService()

	text, meta, err := svc.Extract([]byte("hello world\nsecond line"), "text/plain", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world\nsecond line", text)
	assert.Equal(t, "text", meta.Format)
	assert.Equal(t, "utf-8", meta.Encoding)
	assert.Equal(t, len(text), meta.CharCount)
}

func TestExtractTextUTF8BOM(t *testing.T) {
	svc := newTestService()

	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("with bom")...)
	text, meta, err := svc.Extract(data, "text/plain", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "with bom", text)
	assert.Equal(t, "utf-8-sig", meta.Encoding)
}

func TestExtractTextLatin1(t *testing.T) {
	svc := newTestService()

	// 0xE9 is é in latin-1 and invalid as a standalone UTF-8 byte.
	data := []byte{'c', 'a', 'f', 0xE9}
	text, meta, err := svc.Extract(data, "text/plain", "menu.txt")
	require.NoError(t, err)
	assert.Equal(t, "café", text)
	assert.Equal(t, "latin-1", meta.Encoding)
}

func TestExtractTextEmptyFails(t *testing.T) {
	svc := newTestService()

	for _, data := range [][]byte{nil, []byte("   \n\t  ")} {
		_, _, err := svc.Extract(data, "text/plain", "empty.txt")
		assert.ErrorIs(t, err, ErrExtractionFailed)
	}
}

func TestExtractDispatchByExtension(t *testing.T) {
	svc := newTestService()

	// No usable MIME type; the .md extension selects the text branch.
	text, meta, err := svc.Extract([]byte("# Heading"), "", "README.md")
	require.NoError(t, err)
	assert.Equal(t, "# Heading", text)
	assert.Equal(t, "text", meta.Format)
}

func TestExtractPDFGarbageFails(t *testing.T) {
	svc := newTestService()

	_, _, err := svc.Extract([]byte("definitely not a pdf"), "application/pdf", "broken.pdf")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestPageMarker(t *testing.T) {
	assert.Equal(t, "[PAGE 3]", PageMarker(3))
}

// createTestDocx builds a minimal valid DOCX archive in memory.
func createTestDocx(t *testing.T, paragraphs []string) []byte {
	t.Helper()

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`))
	require.NoError(t, err)

	doc, err := w.Create("word/document.xml")
	require.NoError(t, err)

	body := new(bytes.Buffer)
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)
	_, err = doc.Write(body.Bytes())
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractDocx(t *testing.T) {
	svc := newTestService()

	data := createTestDocx(t, []string{"First paragraph.", "Second paragraph."})
	text, meta, err := svc.Extract(data, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "doc.docx")
	require.NoError(t, err)

	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second paragraph.")
	assert.Equal(t, "docx", meta.Format)
	assert.Equal(t, 2, meta.ParagraphCount)
}

func TestExtractDocxInvalidArchive(t *testing.T) {
	svc := newTestService()

	_, _, err := svc.Extract([]byte("not a zip"), "", "doc.docx")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

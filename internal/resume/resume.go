// Package resume loads the candidate document for one matching run.
package resume

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// EmbedMaxChars caps the resume text used for embedding. The cap is a
// conservative character proxy for the embedding model's token limit
// (~4 chars per token), kept well under it so requests are never rejected
// for size.
const EmbedMaxChars = 1100

var xmlTagRe = regexp.MustCompile(`<[^>]+>`)

// Document is the resume for a single matching run.
type Document struct {
	// Text is the full extracted text with whitespace collapsed.
	Text string
}

// EmbeddingText returns the length-capped text handed to the embedding
// provider.
func (d *Document) EmbeddingText() string {
	if len(d.Text) <= EmbedMaxChars {
		return d.Text
	}
	return d.Text[:EmbedMaxChars]
}

// Load reads a resume from a .txt, .pdf or .docx file and collapses all
// whitespace into single spaces.
func Load(path string) (*Document, error) {
	var (
		text string
		err  error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt":
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	case ".pdf":
		text, err = extractPDF(path)
	case ".docx":
		text, err = extractDOCX(path)
	default:
		return nil, fmt.Errorf("unsupported resume format %q: use .txt, .pdf or .docx", ext)
	}

	if err != nil {
		return nil, fmt.Errorf("read resume %q: %w", path, err)
	}

	doc := &Document{Text: strings.Join(strings.Fields(text), " ")}
	if doc.Text == "" {
		return nil, fmt.Errorf("resume %q contains no extractable text", path)
	}

	return doc, nil
}

func extractPDF(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(file, stat.Size())
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		builder.WriteString(pageText)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

func extractDOCX(path string) (string, error) {
	reader, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	// GetContent returns document XML; tags are stripped to leave plain text.
	content := reader.Editable().GetContent()
	return xmlTagRe.ReplaceAllString(content, " "), nil
}

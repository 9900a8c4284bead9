package resume

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadTxtCollapsesWhitespace(t *testing.T) {
	path := writeTemp(t, "resume.txt", "Go   engineer\n\n5 years\tof experience\n")

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if doc.Text != "Go engineer 5 years of experience" {
		t.Fatalf("unexpected text: %q", doc.Text)
	}
}

func TestLoadRejectsUnsupportedFormat(t *testing.T) {
	path := writeTemp(t, "resume.odt", "whatever")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLoadRejectsEmptyResume(t *testing.T) {
	path := writeTemp(t, "resume.txt", "   \n\t  ")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty resume")
	}
}

func TestEmbeddingTextIsCapped(t *testing.T) {
	doc := &Document{Text: strings.Repeat("a", EmbedMaxChars+500)}

	if got := len(doc.EmbeddingText()); got != EmbedMaxChars {
		t.Fatalf("expected %d chars, got %d", EmbedMaxChars, got)
	}

	short := &Document{Text: "short resume"}
	if short.EmbeddingText() != "short resume" {
		t.Fatalf("short text must pass through unchanged")
	}
}

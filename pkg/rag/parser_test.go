package rag

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"claraai/pkg/domain"
)

func TestDetectFileType(t *testing.T) {
	cases := []struct {
		filename string
		want     domain.FileType
	}{
		{"notes.pdf", domain.FileTypePDF},
		{"Essay.PDF", domain.FileTypePDF},
		{"lecture.docx", domain.FileTypeDOCX},
		{"old.doc", domain.FileTypeDOC},
		{"scan.png", domain.FileTypeImage},
		{"photo.JPEG", domain.FileTypeImage},
		{"readme.txt", domain.FileTypeText},
		{"noextension", domain.FileTypeText},
	}
	for _, tc := range cases {
		if got := DetectFileType(tc.filename); got != tc.want {
			t.Fatalf("DetectFileType(%q) = %q, want %q", tc.filename, got, tc.want)
		}
	}
}

// buildDOCX produces a minimal zip with word/document.xml containing
// the given paragraphs.
func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		sb.WriteString(`<w:p><w:r><w:t>`)
		sb.WriteString(p)
		sb.WriteString(`</w:t></w:r></w:p>`)
	}
	sb.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := f.Write([]byte(sb.String())); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	data := buildDOCX(t, "Photosynthesis basics", "Light reactions happen first")
	text, err := extractDOCX(data)
	if err != nil {
		t.Fatalf("extractDOCX: %v", err)
	}
	if !strings.Contains(text, "Photosynthesis basics") {
		t.Fatalf("missing first paragraph: %q", text)
	}
	if !strings.Contains(text, "Light reactions happen first") {
		t.Fatalf("missing second paragraph: %q", text)
	}
}

func TestExtractDOCXRejectsNonZip(t *testing.T) {
	if _, err := extractDOCX([]byte("not a zip file")); err == nil {
		t.Fatalf("extractDOCX expected error for invalid data")
	}
}

func TestExtractContentDegradesOnBadDOCX(t *testing.T) {
	text := extractContent([]byte("garbage"), "broken.docx", domain.FileTypeDOCX)
	if !strings.HasPrefix(text, "Error reading file broken.docx") {
		t.Fatalf("extractContent = %q, want error placeholder", text)
	}
}

func TestExtractPlainTextHTML(t *testing.T) {
	page := []byte(`<html><head><style>p{color:red}</style><script>alert(1)</script></head><body><p>Cell membranes</p><div>are selectively permeable</div></body></html>`)
	text := normalizeText(extractPlainText(page, "bio.html"))
	if !strings.Contains(text, "Cell membranes") {
		t.Fatalf("missing body text: %q", text)
	}
	if strings.Contains(text, "alert") || strings.Contains(text, "color:red") {
		t.Fatalf("script/style leaked into text: %q", text)
	}
}

func TestNormalizeText(t *testing.T) {
	in := "  a\x00b\n\n  c\td  "
	want := "a b c d"
	if got := normalizeText(in); got != want {
		t.Fatalf("normalizeText = %q, want %q", got, want)
	}
	if got := normalizeText("   "); got != "" {
		t.Fatalf("normalizeText(blank) = %q, want empty", got)
	}
}

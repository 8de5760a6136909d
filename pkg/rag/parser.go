package rag

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"claraai/pkg/domain"
)

// DetectFileType maps a filename extension to the extractor used for
// it. Unknown extensions fall back to plain text.
func DetectFileType(filename string) domain.FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return domain.FileTypePDF
	case ".docx":
		return domain.FileTypeDOCX
	case ".doc":
		return domain.FileTypeDOC
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return domain.FileTypeImage
	default:
		return domain.FileTypeText
	}
}

// extractContent pulls plain text out of the raw file bytes. Extractor
// failures degrade to a placeholder string instead of aborting the
// ingestion call; the resulting document simply retrieves poorly.
func extractContent(data []byte, filename string, fileType domain.FileType) string {
	var (
		text string
		err  error
	)
	switch fileType {
	case domain.FileTypePDF:
		text, err = extractPDF(data)
	case domain.FileTypeDOCX, domain.FileTypeDOC:
		text, err = extractDOCX(data)
	case domain.FileTypeImage:
		text, err = extractImageOCR(data, filename)
		if err != nil {
			slog.Warn("ocr extraction failed", "file", filename, "err", err)
			return fmt.Sprintf("Image file: %s (OCR processing failed)", filename)
		}
	default:
		text = extractPlainText(data, filename)
	}
	if err != nil {
		slog.Warn("content extraction failed", "file", filename, "type", string(fileType), "err", err)
		return fmt.Sprintf("Error reading file %s: %v", filename, err)
	}
	return normalizeText(text)
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	totalPages := reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely.
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("no text extracted from pdf")
	}
	return sb.String(), nil
}

// extractDOCX reads the main document part of a Word file. DOCX is a
// zip archive; paragraph text lives in w:t elements of
// word/document.xml.
func extractDOCX(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	var docXML []byte
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("read docx document: %w", err)
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read docx content: %w", err)
		}
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("docx missing word/document.xml")
	}
	decoder := xml.NewDecoder(bytes.NewReader(docXML))
	var sb strings.Builder
	var inText bool
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx xml: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("no text extracted from docx")
	}
	return sb.String(), nil
}

// extractImageOCR shells out to the tesseract CLI. The image bytes are
// staged in a temp file because tesseract reads from disk.
func extractImageOCR(data []byte, filename string) (string, error) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return "", fmt.Errorf("tesseract not found: %w", err)
	}
	ext := filepath.Ext(filename)
	tmpFile, err := os.CreateTemp("", "clara-ocr-*"+ext)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmpFile.Name())
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return "", err
	}
	if err := tmpFile.Close(); err != nil {
		return "", err
	}
	cmd := exec.Command("tesseract", tmpFile.Name(), "stdout")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return string(output), nil
}

// extractPlainText decodes raw bytes as text. HTML files are walked
// for their text nodes; anything else is taken as-is after UTF-8
// cleanup.
func extractPlainText(data []byte, filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm":
		doc, err := html.Parse(bytes.NewReader(data))
		if err == nil {
			return htmlText(doc)
		}
	}
	return string(data)
}

func htmlText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			buf.WriteString(node.Data)
			buf.WriteString(" ")
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" {
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if node.Type == html.ElementNode && (node.Data == "p" || node.Data == "br" || node.Data == "div" || node.Data == "li") {
			buf.WriteString(" ")
		}
	}
	walk(n)
	return buf.String()
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

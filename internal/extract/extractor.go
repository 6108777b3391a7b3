// Package extract provides text extraction from various document formats.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions no extractor handles.
// Ingestion skips such files instead of failing the request.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// plainExtensions are read verbatim as UTF-8 text.
var plainExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".py":   true,
	".js":   true,
	".log":  true,
	".csv":  true,
	".html": true,
	".xml":  true,
	".json": true,
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// IsSupported reports whether files with the given extension can be
// extracted. ext includes the leading dot and is matched case-insensitively.
func IsSupported(ext string) bool {
	ext = strings.ToLower(ext)
	if plainExtensions[ext] {
		return true
	}
	switch ext {
	case ".pdf", ".docx", ".xlsx", ".pptx":
		return true
	}
	return false
}

// Extract reads the file at path and returns its text content.
// Plain text formats are returned as-is (UTF-8 validated); PDF, DOCX, XLSX,
// and PPTX have their text pulled out of the binary format. Unsupported
// extensions return ErrUnsupportedFormat.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	ext = strings.ToLower(ext)
	if plainExtensions[ext] {
		return extractPlain(content)
	}
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".pptx":
		return extractPPTX(content)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

package documents

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Segment is a block of text extracted from an uploaded document,
// tagged with the filename it came from.
type Segment struct {
	Text   string
	Source string
}

// Loader persists uploaded files to a working directory and parses them
// into text segments. The parser is selected by file extension; anything
// that is not PDF or DOCX is read as plain text.
type Loader struct {
	dataDir string
}

func NewLoader(dataDir string) *Loader {
	if dataDir == "" {
		dataDir = "./data"
	}
	return &Loader{dataDir: dataDir}
}

func (l *Loader) Load(data []byte, filename string) ([]Segment, error) {
	path, err := l.persist(data, filename)
	if err != nil {
		return nil, err
	}

	var text string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = extractPDFText(path)
	case ".docx":
		text, err = extractDOCXText(data)
	default:
		text = string(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return []Segment{{Text: text, Source: filename}}, nil
}

// persist writes the raw upload under the working directory before any
// parsing happens. A write failure is fatal to the whole upload.
func (l *Loader) persist(data []byte, filename string) (string, error) {
	if err := os.MkdirAll(l.dataDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	path := filepath.Join(l.dataDir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("persist upload %s: %w", filename, err)
	}
	log.Printf("📂 Saved upload to %s", path)
	return path, nil
}

func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), nil
}

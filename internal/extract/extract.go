// Package extract turns uploaded files into plain document text.
// PDFs are read page by page with ledongthuc/pdf; text and markdown files are
// decoded to UTF-8, sniffing legacy encodings when needed. Images and other
// binary formats are rejected with ErrUnsupportedType.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// DefaultMaxSize bounds the size of a file read into memory (50 MiB).
const DefaultMaxSize int64 = 50 << 20

// pageSep separates PDF pages so the splitter treats them as paragraphs.
const pageSep = "\n\n"

// Document is the text extracted from one file.
type Document struct {
	Name  string
	MIME  string
	Text  string
	Pages int // 0 for non-paginated formats
}

// Extractor reads files and returns their text.
// An Extractor is stateless and safe for concurrent use.
type Extractor struct {
	maxSize int64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxSize sets the largest accepted input in bytes.
func WithMaxSize(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxSize = n
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractFile reads path and extracts its text.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}
		return Document{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Document{}, fmt.Errorf("%s is a directory: %w", path, ErrUnsupportedType)
	}
	if info.Size() > e.maxSize {
		return Document{}, fmt.Errorf("%s is %d bytes, limit %d: %w", path, info.Size(), e.maxSize, ErrFileTooLarge)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- user-provided input path is intentional
	if err != nil {
		return Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return e.Extract(ctx, filepath.Base(path), data)
}

// Extract returns the text of data. name is used for extension hints and
// error messages only.
func (e *Extractor) Extract(ctx context.Context, name string, data []byte) (Document, error) {
	if int64(len(data)) > e.maxSize {
		return Document{}, fmt.Errorf("%s is %d bytes, limit %d: %w", name, len(data), e.maxSize, ErrFileTooLarge)
	}

	mime := DetectMIME(data)
	doc := Document{Name: name, MIME: baseMIME(mime)}

	switch classify(name, mime) {
	case kindPDF:
		text, pages, err := extractPDF(ctx, data)
		if err != nil {
			return Document{}, fmt.Errorf("%s: %w", name, err)
		}
		doc.Text, doc.Pages = text, pages
	case kindText:
		text, err := decodeText(data)
		if err != nil {
			return Document{}, fmt.Errorf("%s: %w", name, err)
		}
		doc.Text = text
	default:
		return Document{}, fmt.Errorf("%s (%s): %w", name, doc.MIME, ErrUnsupportedType)
	}
	return doc, nil
}

// extractPDF returns the plain text of every page, pages joined by a blank line.
// The PDF reader panics on some malformed inputs; those surface as ErrInvalidPDF.
func extractPDF(ctx context.Context, data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, pages, err = "", 0, fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrInvalidPDF, err)
	}

	total := r.NumPage()
	parts := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("%w: page %d: %w", ErrInvalidPDF, i, err)
		}
		if pageText = strings.TrimSpace(pageText); pageText != "" {
			parts = append(parts, pageText)
		}
	}
	return strings.Join(parts, pageSep), total, nil
}

// decodeText returns data as UTF-8 with normalized line endings.
// Invalid UTF-8 is transcoded from the sniffed legacy encoding.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return normalizeNewlines(string(data)), nil
	}

	enc, name, _ := charset.DetermineEncoding(data, "text/plain")
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("%w: transcode from %s: %w", ErrInvalidEncoding, name, err)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("%w: transcoded result is not UTF-8", ErrInvalidEncoding)
	}
	return normalizeNewlines(string(decoded)), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

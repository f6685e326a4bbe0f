package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pageBreak separates per-page text in the joined output. Downstream
// consumers may only rely on page ordering, not on this exact marker.
const pageBreak = "\n\n"

// Extraction is the result of pulling the text layer out of a PDF.
type Extraction struct {
	Text  string
	Pages int
	// Empty is set when the document parsed fine but contained no
	// machine-readable text. The caller decides whether to abort.
	Empty bool
}

// ExtractText parses the PDF in data and returns its text, page by page
// in page order. Pages are processed strictly sequentially since page
// order encodes the chronological order of the statement.
func ExtractText(ctx context.Context, data []byte) (Extraction, error) {
	reader, err := openReader(data)
	if err != nil {
		return Extraction{}, err
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return Extraction{}, err
		}
		text, err := extractPage(reader, i)
		if err != nil {
			return Extraction{}, err
		}
		pages = append(pages, text)
	}

	joined := strings.TrimSpace(strings.Join(pages, pageBreak))
	return Extraction{
		Text:  joined,
		Pages: numPages,
		Empty: joined == "",
	}, nil
}

// openReader maps low-level reader failures onto the ingestion error
// taxonomy, distinguishing encrypted documents from corrupted ones.
func openReader(data []byte) (r *pdf.Reader, err error) {
	// The pdf package panics on some malformed inputs; fold those into
	// the corrupted-PDF condition instead of crashing the caller.
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = fmt.Errorf("%w: %v", ErrCorruptedPDF, rec)
		}
	}()

	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, classifyOpenError(err)
	}
	return r, nil
}

func classifyOpenError(err error) error {
	// The reader reports documents it cannot decrypt with a sentinel;
	// the message check stays as a fallback for errors that only
	// describe the encryption in text.
	if errors.Is(err, pdf.ErrInvalidPassword) {
		return fmt.Errorf("%w: %v", ErrPasswordProtected, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "encrypt") || strings.Contains(msg, "password") {
		return fmt.Errorf("%w: %v", ErrPasswordProtected, err)
	}
	return fmt.Errorf("%w: %v", ErrCorruptedPDF, err)
}

// extractPage concatenates the positioned text fragments of one page
// with single spaces and normalizes the result.
func extractPage(reader *pdf.Reader, pageNum int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("%w: page %d: %v", ErrCorruptedPDF, pageNum, rec)
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}

	content := page.Content()
	fragments := make([]string, 0, len(content.Text))
	for _, t := range content.Text {
		fragments = append(fragments, t.S)
	}
	return normalizeWhitespace(strings.Join(fragments, " ")), nil
}

// normalizeWhitespace collapses runs of whitespace to a single space and
// trims both ends.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package extract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

var ErrNotPDF = errors.New("not a PDF file")

var pdfMagic = []byte("%PDF")

// IsPDF reports whether content starts with the PDF header.
func IsPDF(content []byte) bool {
	return bytes.HasPrefix(content, pdfMagic)
}

// Inspect opens the document and returns its page count.
func Inspect(content []byte) (pages int, err error) {
	if !IsPDF(content) {
		return 0, fmt.Errorf("%w: invalid header (got: %q)", ErrNotPDF, content[:min(10, len(content))])
	}

	// the reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse pdf: %w", err)
	}

	pages = r.NumPage()
	if pages == 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return pages, nil
}

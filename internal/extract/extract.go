// Package extract turns uploaded files into plain text for ingestion.
// Supported types are .txt (decoded as UTF-8, invalid bytes dropped) and
// .pdf (page texts joined with newlines).
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedType is returned for any file type other than .txt or .pdf.
var ErrUnsupportedType = errors.New("only .txt and .pdf files are supported")

// Text extracts plain text from an uploaded file based on its filename
// extension (case-insensitive).
func Text(filename string, content []byte) (string, error) {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".txt"):
		return strings.ToValidUTF8(string(content), ""), nil
	case strings.HasSuffix(name, ".pdf"):
		return fromPDF(content)
	default:
		return "", fmt.Errorf("extract: %q: %w", filename, ErrUnsupportedType)
	}
}

// fromPDF joins the plain text of every page with newlines. Pages whose text
// cannot be extracted contribute an empty string rather than failing the
// whole document.
func fromPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract: parse pdf: %w", err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, txt)
	}
	return strings.Join(pages, "\n"), nil
}

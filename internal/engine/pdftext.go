package engine

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// extractPDFText returns the text of each page in order.
func extractPDFText(path string) ([]string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return nil, fmt.Errorf("extracting text from page %d: %w", i+1, err)
		}
		pages = append(pages, strings.TrimRight(text, "\n"))
	}
	return pages, nil
}

// joinPages concatenates page texts with blank-line separators.
func joinPages(pages []string) string {
	return strings.Join(pages, "\n\n")
}

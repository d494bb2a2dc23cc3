package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/go-pdf/fpdf"
)

// wordToPDF renders a Word document as a PDF: headings as heading styles,
// body text as paragraphs, tables as grids, in document order. If parsing
// fails or yields nothing renderable, a raw text extraction is rendered
// line by line instead.
func (e *Engine) wordToPDF(ctx context.Context, in Input, opts WordToPDFOptions) (*Result, error) {
	res, err := runChain("word_to_pdf", []strategy{
		{"structured", func() (*Result, error) {
			blocks, err := readDocx(in.Path)
			if err != nil {
				return nil, err
			}
			data, err := renderBlocksPDF(blocks, opts)
			if err != nil {
				return nil, err
			}
			return &Result{Bytes: data}, nil
		}},
		{"raw-text", func() (*Result, error) {
			text, err := scrapeDocumentText(in.Path)
			if err != nil {
				return nil, err
			}
			data, err := renderPlainTextPDF(text)
			if err != nil {
				return nil, err
			}
			return &Result{Bytes: data}, nil
		}},
	})
	if err != nil {
		return nil, err
	}

	res.Filename = fmt.Sprintf("%s_converted.pdf", stem(in.OriginalName))
	res.Meta = map[string]interface{}{
		"quality": opts.Quality,
	}
	return res, nil
}

func renderBlocksPDF(blocks []docBlock, opts WordToPDFOptions) ([]byte, error) {
	rendered := false
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(54, 54, 54)
	pdf.SetAutoPageBreak(true, 54)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()
	usable := pageW - 108

	for _, block := range blocks {
		switch b := block.(type) {
		case docParagraph:
			text := strings.TrimSpace(b.Text)
			if text == "" {
				if !opts.RemoveBlankPages {
					pdf.Ln(14)
				}
				continue
			}
			rendered = true
			switch {
			case strings.HasPrefix(b.Style, "Heading1") || b.Style == "Title":
				pdf.SetFont("Helvetica", "B", 16)
				pdf.MultiCell(usable, 20, tr(text), "", "L", false)
				pdf.Ln(6)
			case strings.HasPrefix(b.Style, "Heading"):
				pdf.SetFont("Helvetica", "B", 13)
				pdf.MultiCell(usable, 17, tr(text), "", "L", false)
				pdf.Ln(4)
			default:
				pdf.SetFont("Helvetica", "", 11)
				pdf.MultiCell(usable, 14, tr(text), "", "L", false)
				pdf.Ln(6)
			}
		case docTable:
			if len(b.Rows) == 0 {
				continue
			}
			rendered = true
			cols := 0
			for _, row := range b.Rows {
				if len(row) > cols {
					cols = len(row)
				}
			}
			colW := usable / float64(cols)
			pdf.SetFont("Helvetica", "", 9)
			for i, row := range b.Rows {
				if i == 0 {
					pdf.SetFont("Helvetica", "B", 9)
				} else {
					pdf.SetFont("Helvetica", "", 9)
				}
				for c := 0; c < cols; c++ {
					cell := ""
					if c < len(row) {
						cell = row[c]
					}
					pdf.CellFormat(colW, 18, tr(strings.TrimSpace(cell)), "1", 0, "L", false, 0, "")
				}
				pdf.Ln(-1)
			}
			pdf.Ln(8)
		}
	}

	if !rendered {
		return nil, fmt.Errorf("document has no renderable content")
	}
	return outputPDF(pdf)
}

func renderPlainTextPDF(text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text extracted")
	}
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(54, 54, 54)
	pdf.SetAutoPageBreak(true, 54)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range strings.Split(text, "\n") {
		pdf.MultiCell(pageW-108, 14, tr(line), "", "L", false)
	}
	return outputPDF(pdf)
}

// scrapeDocumentText recovers readable text from a document whose structure
// could not be parsed, by collecting printable runs from the raw bytes.
// Crude, but better than failing outright on legacy .doc files.
func scrapeDocumentText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}

	var out strings.Builder
	var run []rune
	flush := func() {
		if len(run) >= 4 {
			out.WriteString(string(run))
			out.WriteByte('\n')
		}
		run = run[:0]
	}
	for _, b := range data {
		r := rune(b)
		if r == '\t' || (unicode.IsPrint(r) && r < 127) {
			run = append(run, r)
		} else {
			flush()
		}
	}
	flush()
	return out.String(), nil
}

func outputPDF(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}

package engine

import (
	"context"
	"fmt"
	"strings"
)

// pdfToWord extracts a PDF into docx, doc, rtf, or txt. For Word targets a
// structured rendering (paragraph grouping, heading detection) is attempted
// first, falling back to flat page-by-page text.
func (e *Engine) pdfToWord(ctx context.Context, in Input, opts PDFToWordOptions) (*Result, error) {
	pages, err := extractPDFText(in.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: extracting text from %s: %v", ErrConversionFailed, in.OriginalName, err)
	}

	var data []byte
	switch opts.OutputFormat {
	case "txt":
		data = []byte(joinPages(pages))
	case "rtf":
		data = renderRTF(pages)
	default: // docx, doc
		res, err := runChain("pdf_to_word", []strategy{
			{"structured-docx", func() (*Result, error) {
				if opts.ExtractTextOnly {
					return nil, fmt.Errorf("text-only extraction requested")
				}
				b, err := writeDocx(structuredParagraphs(pages))
				return &Result{Bytes: b}, err
			}},
			{"plaintext-docx", func() (*Result, error) {
				b, err := writeDocx(flatParagraphs(pages))
				return &Result{Bytes: b}, err
			}},
		})
		if err != nil {
			return nil, err
		}
		data = res.Bytes
	}

	return &Result{
		Bytes:    data,
		Filename: fmt.Sprintf("%s_converted.%s", stem(in.OriginalName), opts.OutputFormat),
		Meta: map[string]interface{}{
			"pages": len(pages),
		},
	}, nil
}

// structuredParagraphs groups page text into paragraphs at blank lines and
// promotes short unterminated lines to headings.
func structuredParagraphs(pages []string) []docParagraph {
	var paras []docParagraph
	for i, page := range pages {
		if i > 0 {
			paras = append(paras, docParagraph{})
		}
		var current []string
		flush := func() {
			if len(current) == 0 {
				return
			}
			text := strings.Join(current, " ")
			current = nil
			if looksLikeHeading(text) {
				paras = append(paras, docParagraph{Style: "Heading2", Text: text})
				return
			}
			paras = append(paras, docParagraph{Text: text})
		}
		for _, line := range strings.Split(page, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				flush()
				continue
			}
			if looksLikeHeading(line) && len(current) == 0 {
				paras = append(paras, docParagraph{Style: "Heading2", Text: line})
				continue
			}
			current = append(current, line)
		}
		flush()
	}
	return paras
}

// flatParagraphs renders each page's raw text as one paragraph.
func flatParagraphs(pages []string) []docParagraph {
	paras := make([]docParagraph, 0, len(pages)*2)
	for i, page := range pages {
		if i > 0 {
			paras = append(paras, docParagraph{})
		}
		paras = append(paras, docParagraph{Text: page})
	}
	return paras
}

func looksLikeHeading(line string) bool {
	if line == "" || len(line) > 60 {
		return false
	}
	if strings.HasSuffix(line, ".") || strings.HasSuffix(line, ",") ||
		strings.HasSuffix(line, ";") || strings.HasSuffix(line, ":") {
		return false
	}
	// Headings do not read as running prose.
	return strings.Count(line, " ") <= 8
}

// renderRTF wraps page texts in minimal RTF markup with page breaks.
func renderRTF(pages []string) []byte {
	var buf strings.Builder
	buf.WriteString(`{\rtf1\ansi\deff0{\fonttbl{\f0 Times New Roman;}}\f0\fs24 `)
	for i, page := range pages {
		if i > 0 {
			buf.WriteString(`\page `)
		}
		for _, line := range strings.Split(page, "\n") {
			buf.WriteString(rtfEscape(line))
			buf.WriteString(`\par `)
		}
	}
	buf.WriteString("}")
	return []byte(buf.String())
}

func rtfEscape(s string) string {
	var buf strings.Builder
	for _, r := range s {
		switch {
		case r == '\\' || r == '{' || r == '}':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case r > 127:
			fmt.Fprintf(&buf, `\u%d?`, r)
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}

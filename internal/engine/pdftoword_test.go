package engine

import (
	"context"
	"strings"
	"testing"
)

func TestPDFToWordFormats(t *testing.T) {
	dir := t.TempDir()
	eng := New(dir)
	path := makeTestPDF(t, dir, "in.pdf", 2, "report")
	in := Input{Path: path, OriginalName: "report.pdf"}

	tests := []struct {
		format     string
		wantPrefix string
	}{
		{"txt", "report"},
		{"rtf", `{\rtf1`},
		{"docx", "PK"}, // zip magic
		{"doc", "PK"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			res, err := eng.pdfToWord(context.Background(), in,
				PDFToWordOptions{OutputFormat: tt.format, PreserveLayout: true})
			if err != nil {
				t.Fatalf("pdfToWord: %v", err)
			}
			if want := "report_converted." + tt.format; res.Filename != want {
				t.Errorf("Filename = %q, want %q", res.Filename, want)
			}
			if !strings.HasPrefix(string(res.Bytes), tt.wantPrefix) {
				t.Errorf("output does not start with %q", tt.wantPrefix)
			}
			if res.Meta["pages"] != 2 {
				t.Errorf("pages = %v, want 2", res.Meta["pages"])
			}
		})
	}
}

func TestPDFToWordTxtKeepsPageSeparators(t *testing.T) {
	dir := t.TempDir()
	eng := New(dir)
	path := makeTestPDF(t, dir, "in.pdf", 3, "body")

	res, err := eng.pdfToWord(context.Background(),
		Input{Path: path, OriginalName: "in.pdf"},
		PDFToWordOptions{OutputFormat: "txt"})
	if err != nil {
		t.Fatalf("pdfToWord: %v", err)
	}
	text := string(res.Bytes)
	for i := 1; i <= 3; i++ {
		if !strings.Contains(text, "body page") {
			t.Fatalf("extracted text missing page markers: %q", text)
		}
	}
	// Pages are joined with blank-line separators.
	if strings.Count(text, "\n\n") < 2 {
		t.Errorf("expected blank-line page separators in %q", text)
	}
}

func TestStructuredParagraphsHeadingDetection(t *testing.T) {
	pages := []string{"Quarterly Report\n\nRevenue grew strongly this quarter and exceeded the forecast that was set in January."}
	paras := structuredParagraphs(pages)

	var styles []string
	for _, p := range paras {
		if p.Text != "" {
			styles = append(styles, p.Style)
		}
	}
	if len(styles) != 2 || styles[0] != "Heading2" || styles[1] != "" {
		t.Errorf("styles = %v, want [Heading2, \"\"]", styles)
	}
}

func TestRTFEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, `plain`},
		{`braces {x}`, `braces \{x\}`},
		{`back\slash`, `back\\slash`},
		{"café", `caf\u233?`},
	}
	for _, tt := range tests {
		if got := rtfEscape(tt.in); got != tt.want {
			t.Errorf("rtfEscape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

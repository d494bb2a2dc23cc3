package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleDocumentXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Quarterly Report</w:t></w:r></w:p>
<w:p><w:r><w:t>Revenue grew </w:t></w:r><w:r><w:t>12 percent.</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Region</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Total</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>North</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>42</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:p><w:r><w:t>Closing remarks.</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestParseDocumentXML(t *testing.T) {
	blocks, err := parseDocumentXML([]byte(sampleDocumentXML))
	if err != nil {
		t.Fatalf("parseDocumentXML: %v", err)
	}
	if len(blocks) != 4 {
		t.Fatalf("got %d blocks, want 4: %#v", len(blocks), blocks)
	}

	h, ok := blocks[0].(docParagraph)
	if !ok || h.Style != "Heading1" || h.Text != "Quarterly Report" {
		t.Errorf("block 0 = %#v, want Heading1 paragraph", blocks[0])
	}

	body, ok := blocks[1].(docParagraph)
	if !ok || body.Text != "Revenue grew 12 percent." {
		t.Errorf("block 1 = %#v, want merged run text", blocks[1])
	}

	tbl, ok := blocks[2].(docTable)
	if !ok || len(tbl.Rows) != 2 {
		t.Fatalf("block 2 = %#v, want 2-row table", blocks[2])
	}
	if tbl.Rows[0][0] != "Region" || tbl.Rows[1][1] != "42" {
		t.Errorf("table rows = %v", tbl.Rows)
	}
}

func TestWriteReadDocxRoundTrip(t *testing.T) {
	paras := []docParagraph{
		{Style: "Heading1", Text: "Title"},
		{Text: "First paragraph with <angle> & ampersand."},
		{Text: "Second paragraph."},
	}
	data, err := writeDocx(paras)
	if err != nil {
		t.Fatalf("writeDocx: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.docx")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing docx: %v", err)
	}

	blocks, err := readDocx(path)
	if err != nil {
		t.Fatalf("readDocx: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(blocks))
	}
	got := blocks[1].(docParagraph)
	if got.Text != "First paragraph with <angle> & ampersand." {
		t.Errorf("escaped text did not round-trip: %q", got.Text)
	}
	if blocks[0].(docParagraph).Style != "Heading1" {
		t.Errorf("heading style did not round-trip: %#v", blocks[0])
	}
}

func TestWordToPDFStructured(t *testing.T) {
	dir := t.TempDir()
	eng := New(dir)

	data, err := writeDocx([]docParagraph{
		{Style: "Heading1", Text: "Minutes"},
		{Text: "Attendees discussed the roadmap."},
	})
	if err != nil {
		t.Fatalf("writeDocx: %v", err)
	}
	path := filepath.Join(dir, "minutes.docx")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	res, err := eng.wordToPDF(context.Background(),
		Input{Path: path, OriginalName: "minutes.docx"},
		WordToPDFOptions{Quality: "medium"})
	if err != nil {
		t.Fatalf("wordToPDF: %v", err)
	}
	if res.Filename != "minutes_converted.pdf" {
		t.Errorf("Filename = %q, want minutes_converted.pdf", res.Filename)
	}
	if !bytes.HasPrefix(res.Bytes, []byte("%PDF")) {
		t.Error("output is not a PDF")
	}

	out := writeResult(t, dir, res)
	pages, err := extractPDFText(out)
	if err != nil {
		t.Fatalf("extracting rendered text: %v", err)
	}
	if len(pages) == 0 || !bytes.Contains([]byte(pages[0]), []byte("Minutes")) {
		t.Errorf("rendered PDF missing heading text: %q", pages)
	}
}

func TestWordToPDFFallsBackOnUnparseableInput(t *testing.T) {
	dir := t.TempDir()
	eng := New(dir)

	// Not a zip at all; structured parsing fails and the raw-text
	// fallback picks up the printable runs.
	path := filepath.Join(dir, "legacy.doc")
	content := []byte("\x00\x01binary junk\x02 The quick brown fox jumps over the lazy dog \x03\x00")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	res, err := eng.wordToPDF(context.Background(),
		Input{Path: path, OriginalName: "legacy.doc"},
		WordToPDFOptions{Quality: "medium"})
	if err != nil {
		t.Fatalf("wordToPDF fallback: %v", err)
	}
	if !bytes.HasPrefix(res.Bytes, []byte("%PDF")) {
		t.Error("fallback output is not a PDF")
	}
}

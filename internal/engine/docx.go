package engine

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Word documents are OPC packages: a zip holding word/document.xml plus
// relationship parts. Reading walks paragraphs and tables in document
// order; writing emits the minimal package a Word processor accepts.

type docParagraph struct {
	Style string // pStyle value, e.g. "Heading1"; empty for body text
	Text  string
}

type docTable struct {
	Rows [][]string
}

// docBlock is either a docParagraph or a docTable.
type docBlock interface{ isBlock() }

func (docParagraph) isBlock() {}
func (docTable) isBlock()     {}

// readDocx parses the document body of a .docx file into ordered blocks.
func readDocx(path string) ([]docBlock, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening docx package: %w", err)
	}
	defer zr.Close()

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("opening document part: %w", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("reading document part: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, errors.New("docx package has no word/document.xml")
	}

	return parseDocumentXML(docXML)
}

func parseDocumentXML(data []byte) ([]docBlock, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var blocks []docBlock

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing document xml: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "tbl":
			tbl, err := parseTable(dec)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, tbl)
		case "p":
			para, err := parseParagraph(dec)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, para)
		}
	}
	return blocks, nil
}

// parseParagraph consumes tokens until the paragraph closes, collecting the
// style name and the concatenated run text.
func parseParagraph(dec *xml.Decoder) (docParagraph, error) {
	var para docParagraph
	var text strings.Builder
	depth := 1
	inText := false

	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return para, fmt.Errorf("parsing paragraph: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "pStyle":
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						para.Style = attr.Value
					}
				}
			case "t":
				inText = true
			case "br", "cr":
				text.WriteByte('\n')
			case "tab":
				text.WriteByte('\t')
			}
		case xml.EndElement:
			depth--
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		}
	}
	para.Text = text.String()
	return para, nil
}

// parseTable consumes tokens until the table closes, collecting cell text
// row by row. Nested paragraph structure inside cells is flattened.
func parseTable(dec *xml.Decoder) (docTable, error) {
	var tbl docTable
	var row []string
	var cell strings.Builder
	depth := 1
	inText := false
	inCell := false

	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return tbl, fmt.Errorf("parsing table: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "tr":
				row = nil
			case "tc":
				inCell = true
				cell.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "tr":
				if len(row) > 0 {
					tbl.Rows = append(tbl.Rows, row)
				}
			case "tc":
				inCell = false
				row = append(row, cell.String())
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && inCell {
				cell.Write(t)
			}
		}
	}
	return tbl, nil
}

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// writeDocx builds a minimal .docx package from ordered paragraphs.
func writeDocx(paragraphs []docParagraph) ([]byte, error) {
	var doc strings.Builder
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		doc.WriteString("<w:p>")
		if p.Style != "" {
			doc.WriteString(`<w:pPr><w:pStyle w:val="` + xmlEscape(p.Style) + `"/></w:pPr>`)
		}
		for i, line := range strings.Split(p.Text, "\n") {
			if i > 0 {
				doc.WriteString("<w:r><w:br/></w:r>")
			}
			if line != "" {
				doc.WriteString(`<w:r><w:t xml:space="preserve">` + xmlEscape(line) + `</w:t></w:r>`)
			}
		}
		doc.WriteString("</w:p>")
	}
	doc.WriteString(`<w:sectPr/></w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name, body string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRootRels},
		{"word/document.xml", doc.String()},
	}
	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("writing docx part %s: %w", part.name, err)
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, fmt.Errorf("writing docx part %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing docx package: %w", err)
	}
	return buf.Bytes(), nil
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	// EscapeText only fails on a failing writer, which bytes.Buffer is not.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

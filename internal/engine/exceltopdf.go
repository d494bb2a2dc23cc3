package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

// Approximate cell footprint used when sizing the page to fit content.
const (
	excelColWidth  = 108.0 // 1.5in
	excelRowHeight = 28.8  // 0.4in
)

// excelToPDF renders the first worksheet as a table. Only the first sheet
// is read; the worksheet option is recorded for diagnostics but not applied.
func (e *Engine) excelToPDF(ctx context.Context, in Input, opts ExcelOptions) (*Result, error) {
	wb, err := excelize.OpenFile(in.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening workbook %s: %v", ErrConversionFailed, in.OriginalName, err)
	}
	defer wb.Close()

	sheet := wb.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no worksheets", ErrConversionFailed)
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: reading worksheet %s: %v", ErrConversionFailed, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: worksheet %s has no data", ErrConversionFailed, sheet)
	}

	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}

	// Page grows to fit content when requested and the table would not fit
	// a standard page; otherwise Letter.
	pageW, pageH := 612.0, 792.0
	if opts.FitToPage {
		requiredW := float64(cols) * excelColWidth
		requiredH := float64(len(rows)) * excelRowHeight
		if requiredW > 720 || requiredH > 720 {
			pageW = requiredW + 144
			pageH = requiredH + 144
		}
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetMargins(54, 54, 54)
	pdf.SetAutoPageBreak(true, 54)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	usable := pageW - 108
	colW := usable / float64(cols)

	if opts.Headers {
		pdf.SetFont("Helvetica", "B", 18)
		pdf.CellFormat(usable, 24, "Excel to PDF Conversion", "", 1, "C", false, 0, "")
		pdf.Ln(20)
	}

	border := ""
	if opts.Gridlines {
		border = "1"
	}
	tableTop := pdf.GetY()

	for i, row := range rows {
		if i == 0 {
			pdf.SetFont("Helvetica", "B", 12)
			pdf.SetFillColor(0x4C, 0xAF, 0x50)
			pdf.SetTextColor(0xF5, 0xF5, 0xF5)
		} else {
			pdf.SetFont("Helvetica", "", 10)
			pdf.SetFillColor(0xF9, 0xF9, 0xF9)
			pdf.SetTextColor(0, 0, 0)
		}
		for c := 0; c < cols; c++ {
			cell := ""
			if c < len(row) {
				cell = row[c]
			}
			pdf.CellFormat(colW, excelRowHeight, tr(strings.TrimSpace(cell)), border, 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
	if !opts.Gridlines {
		pdf.Rect(54, tableTop, colW*float64(cols), pdf.GetY()-tableTop, "D")
	}
	pdf.SetTextColor(0, 0, 0)

	data, err := outputPDF(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	return &Result{
		Bytes:    data,
		Filename: fmt.Sprintf("%s_converted.pdf", stem(in.OriginalName)),
		Meta: map[string]interface{}{
			"worksheet": sheet,
			"rows":      len(rows),
		},
	}, nil
}

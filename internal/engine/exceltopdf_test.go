package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func makeTestXLSX(t *testing.T, dir string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				t.Fatalf("setting cell: %v", err)
			}
		}
	}
	path := filepath.Join(dir, "book.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("saving workbook: %v", err)
	}
	f.Close()
	return path
}

func TestExcelToPDF(t *testing.T) {
	dir := t.TempDir()
	eng := New(dir)

	path := makeTestXLSX(t, dir, [][]interface{}{
		{"Region", "Q1", "Q2"},
		{"North", 120, 140},
		{"South", 90, 85},
	})
	opts, _ := ParseOptions(KindExcelToPDF, map[string]interface{}{})

	res, err := eng.Convert(context.Background(), KindExcelToPDF,
		[]Input{{Path: path, OriginalName: "sales.xlsx"}}, opts)
	if err != nil {
		t.Fatalf("excelToPDF: %v", err)
	}
	if res.Filename != "sales_converted.pdf" {
		t.Errorf("Filename = %q, want sales_converted.pdf", res.Filename)
	}
	if !bytes.HasPrefix(res.Bytes, []byte("%PDF")) {
		t.Error("output is not a PDF")
	}
	if res.Meta["rows"] != 3 {
		t.Errorf("rows = %v, want 3", res.Meta["rows"])
	}

	out := writeResult(t, dir, res)
	pages, err := extractPDFText(out)
	if err != nil {
		t.Fatalf("extracting text: %v", err)
	}
	text := strings.Join(pages, "\n")
	for _, want := range []string{"Excel to PDF Conversion", "Region", "North", "South"} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered table missing %q", want)
		}
	}
}

func TestExcelToPDFWithoutTitle(t *testing.T) {
	dir := t.TempDir()
	eng := New(dir)

	path := makeTestXLSX(t, dir, [][]interface{}{{"only", "row"}})
	opts, _ := ParseOptions(KindExcelToPDF, map[string]interface{}{"headers": false, "gridlines": false})

	res, err := eng.Convert(context.Background(), KindExcelToPDF,
		[]Input{{Path: path, OriginalName: "plain.xlsx"}}, opts)
	if err != nil {
		t.Fatalf("excelToPDF: %v", err)
	}

	out := writeResult(t, dir, res)
	pages, err := extractPDFText(out)
	if err != nil {
		t.Fatalf("extracting text: %v", err)
	}
	if strings.Contains(strings.Join(pages, "\n"), "Excel to PDF Conversion") {
		t.Error("title should be omitted when headers option is off")
	}
}

func TestExcelToPDFEmptyWorkbook(t *testing.T) {
	dir := t.TempDir()
	eng := New(dir)

	f := excelize.NewFile()
	path := filepath.Join(dir, "empty.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("saving workbook: %v", err)
	}
	f.Close()

	opts, _ := ParseOptions(KindExcelToPDF, map[string]interface{}{})
	_, err := eng.Convert(context.Background(), KindExcelToPDF,
		[]Input{{Path: path, OriginalName: "empty.xlsx"}}, opts)
	if !errors.Is(err, ErrConversionFailed) {
		t.Errorf("empty workbook should be ErrConversionFailed, got %v", err)
	}
}

func TestExcelToPDFNotAWorkbook(t *testing.T) {
	dir := t.TempDir()
	eng := New(dir)

	path := filepath.Join(dir, "fake.xlsx")
	if err := os.WriteFile(path, []byte("plain text"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	opts, _ := ParseOptions(KindExcelToPDF, map[string]interface{}{})
	_, err := eng.Convert(context.Background(), KindExcelToPDF,
		[]Input{{Path: path, OriginalName: "fake.xlsx"}}, opts)
	if !errors.Is(err, ErrConversionFailed) {
		t.Errorf("unparseable workbook should be ErrConversionFailed, got %v", err)
	}
}

package engine

import (
	"errors"
	"testing"
)

func TestParseKind(t *testing.T) {
	for _, k := range AllKinds {
		if got, err := ParseKind(string(k)); err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k, got, err)
		}
	}
	if _, err := ParseKind("pdf_to_excel"); !errors.Is(err, ErrUnsupportedOption) {
		t.Errorf("unknown kind should be ErrUnsupportedOption, got %v", err)
	}
}

func TestParseOptionsRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		bag  map[string]interface{}
	}{
		{"bad output format", KindPDFToWord, map[string]interface{}{"output_format": "odt"}},
		{"bad quality", KindWordToPDF, map[string]interface{}{"quality": "ultra"}},
		{"missing split type", KindSplitPDF, map[string]interface{}{}},
		{"bad split type", KindSplitPDF, map[string]interface{}{"split_type": "halves"}},
		{"range without pages", KindSplitPDF, map[string]interface{}{"split_type": "range"}},
		{"range with letters", KindSplitPDF, map[string]interface{}{"split_type": "range", "pages": "1-3;drop"}},
		{"every zero", KindSplitPDF, map[string]interface{}{"split_type": "every", "split_every": 0}},
		{"count negative", KindSplitPDF, map[string]interface{}{"split_type": "count", "page_count": -2}},
		{"custom with dash", KindSplitPDF, map[string]interface{}{"split_type": "custom", "custom_split": "3-7"}},
		{"bad compression level", KindCompress, map[string]interface{}{"compression_level": "max"}},
		{"bad page size", KindImageToPDF, map[string]interface{}{"page_size": "A3"}},
		{"bad orientation", KindImageToPDF, map[string]interface{}{"orientation": "sideways"}},
		{"bad placement", KindImageToPDF, map[string]interface{}{"placement": "tile"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseOptions(tt.kind, tt.bag); !errors.Is(err, ErrUnsupportedOption) {
				t.Errorf("ParseOptions = %v, want ErrUnsupportedOption", err)
			}
		})
	}
}

func TestParseOptionsDefaults(t *testing.T) {
	raw, err := ParseOptions(KindPDFToWord, map[string]interface{}{})
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	p2w := raw.(PDFToWordOptions)
	if p2w.OutputFormat != "docx" || !p2w.PreserveLayout {
		t.Errorf("unexpected pdf_to_word defaults: %+v", p2w)
	}

	raw, err = ParseOptions(KindCompress, nil)
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	comp := raw.(CompressOptions)
	if comp.Level != "medium" || !comp.OptimizeImages || comp.QualityPreservation != "balanced" {
		t.Errorf("unexpected compress defaults: %+v", comp)
	}

	raw, err = ParseOptions(KindImageToPDF, map[string]interface{}{})
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	img := raw.(ImageOptions)
	if img.PageSize != "A4" || img.Orientation != "portrait" || img.Placement != "fit" {
		t.Errorf("unexpected image defaults: %+v", img)
	}

	raw, err = ParseOptions(KindExcelToPDF, map[string]interface{}{})
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	xls := raw.(ExcelOptions)
	if !xls.Gridlines || !xls.FitToPage || !xls.Headers || xls.Worksheet != "first" {
		t.Errorf("unexpected excel defaults: %+v", xls)
	}
}

func TestParseOptionsCoercesFormValues(t *testing.T) {
	// Multipart forms deliver everything as strings; JSON delivers float64.
	raw, err := ParseOptions(KindSplitPDF, map[string]interface{}{
		"split_type":  "every",
		"split_every": "3",
	})
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	if raw.(SplitOptions).Every != 3 {
		t.Errorf("string split_every not coerced: %+v", raw)
	}

	raw, err = ParseOptions(KindSplitPDF, map[string]interface{}{
		"split_type": "count",
		"page_count": float64(4),
	})
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	if raw.(SplitOptions).Count != 4 {
		t.Errorf("float64 page_count not coerced: %+v", raw)
	}

	raw, err = ParseOptions(KindImageToPDF, map[string]interface{}{
		"add_page_numbers": "true",
	})
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	if !raw.(ImageOptions).AddPageNumbers {
		t.Errorf("string bool not coerced: %+v", raw)
	}
}

func TestValidateInputCount(t *testing.T) {
	tests := []struct {
		kind   Kind
		n      int
		wantOK bool
	}{
		{KindMergePDF, 2, true},
		{KindMergePDF, 10, true},
		{KindMergePDF, 1, false},
		{KindMergePDF, 11, false},
		{KindImageToPDF, 1, true},
		{KindImageToPDF, 20, true},
		{KindImageToPDF, 21, false},
		{KindCompress, 1, true},
		{KindCompress, 2, false},
	}
	for _, tt := range tests {
		err := ValidateInputCount(tt.kind, tt.n)
		if (err == nil) != tt.wantOK {
			t.Errorf("ValidateInputCount(%s, %d) = %v, wantOK %v", tt.kind, tt.n, err, tt.wantOK)
		}
	}
}

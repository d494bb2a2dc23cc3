package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnsupportedOption = errors.New("unsupported option")
	ErrInputNotFound     = errors.New("input file not found")
	ErrConversionFailed  = errors.New("conversion failed")
)

// PDFToWordOptions controls pdf_to_word.
type PDFToWordOptions struct {
	OutputFormat    string // docx, doc, rtf, txt
	PreserveLayout  bool
	EnhancedOCR     bool
	ExtractTextOnly bool
}

// WordToPDFOptions controls word_to_pdf.
type WordToPDFOptions struct {
	RemoveBlankPages bool
	OptimizeSize     bool
	Quality          string // low, medium, high
}

// SplitOptions controls split_pdf. Exactly one of the mode parameters is
// consulted, selected by Type.
type SplitOptions struct {
	Type        string // range, every, count, custom
	Pages       string // range mode: "1-3,5,7-10"
	Every       int    // every mode: pages per part
	Count       int    // count mode: alias of every
	CustomSplit string // custom mode: "3,7"
}

// CompressOptions controls compress_pdf.
type CompressOptions struct {
	Level               string // low, medium, high
	OptimizeImages      bool
	OptimizeFonts       bool
	RemoveMetadata      bool
	QualityPreservation string
}

// ExcelOptions controls excel_to_pdf. Worksheet is recorded but only the
// first sheet is ever rendered.
type ExcelOptions struct {
	Gridlines bool
	FitToPage bool
	Headers   bool
	Worksheet string
}

// ImageOptions controls image_to_pdf.
type ImageOptions struct {
	PageSize       string // A4, letter, A5, legal
	Orientation    string // portrait, landscape
	Placement      string // fit, full, center, multiple
	AddPageNumbers bool
}

// ParseOptions validates a raw option bag against the kind's schema. It runs
// before any task is recorded so malformed bags never reach the engine.
func ParseOptions(kind Kind, bag map[string]interface{}) (interface{}, error) {
	switch kind {
	case KindPDFToWord:
		return parsePDFToWordOptions(bag)
	case KindWordToPDF:
		return parseWordToPDFOptions(bag)
	case KindMergePDF:
		return struct{}{}, nil
	case KindSplitPDF:
		return parseSplitOptions(bag)
	case KindCompress:
		return parseCompressOptions(bag)
	case KindExcelToPDF:
		return parseExcelOptions(bag)
	case KindImageToPDF:
		return parseImageOptions(bag)
	default:
		return nil, fmt.Errorf("%w: unknown conversion kind %q", ErrUnsupportedOption, kind)
	}
}

func parsePDFToWordOptions(bag map[string]interface{}) (PDFToWordOptions, error) {
	opts := PDFToWordOptions{
		OutputFormat:    stringOption(bag, "output_format", "docx"),
		PreserveLayout:  boolOption(bag, "preserve_layout", true),
		EnhancedOCR:     boolOption(bag, "enhanced_ocr", false),
		ExtractTextOnly: boolOption(bag, "extract_text_only", false),
	}
	switch opts.OutputFormat {
	case "docx", "doc", "rtf", "txt":
	default:
		return opts, fmt.Errorf("%w: output_format must be one of docx, doc, rtf, txt; got %q",
			ErrUnsupportedOption, opts.OutputFormat)
	}
	return opts, nil
}

func parseWordToPDFOptions(bag map[string]interface{}) (WordToPDFOptions, error) {
	opts := WordToPDFOptions{
		RemoveBlankPages: boolOption(bag, "remove_blank_pages", false),
		OptimizeSize:     boolOption(bag, "optimize_size", false),
		Quality:          stringOption(bag, "quality", "medium"),
	}
	switch opts.Quality {
	case "low", "medium", "high":
	default:
		return opts, fmt.Errorf("%w: quality must be one of low, medium, high; got %q",
			ErrUnsupportedOption, opts.Quality)
	}
	return opts, nil
}

func parseSplitOptions(bag map[string]interface{}) (SplitOptions, error) {
	opts := SplitOptions{
		Type:        stringOption(bag, "split_type", ""),
		Pages:       stringOption(bag, "pages", ""),
		Every:       intOption(bag, "split_every", 0),
		Count:       intOption(bag, "page_count", 0),
		CustomSplit: stringOption(bag, "custom_split", ""),
	}

	switch opts.Type {
	case "range":
		if opts.Pages == "" {
			return opts, fmt.Errorf("%w: pages is required for range split", ErrUnsupportedOption)
		}
		for _, c := range opts.Pages {
			if !strings.ContainsRune("0123456789,- ", c) {
				return opts, fmt.Errorf("%w: invalid character %q in pages", ErrUnsupportedOption, c)
			}
		}
	case "every":
		if opts.Every < 1 {
			return opts, fmt.Errorf("%w: split_every must be at least 1", ErrUnsupportedOption)
		}
	case "count":
		if opts.Count < 1 {
			return opts, fmt.Errorf("%w: page_count must be at least 1", ErrUnsupportedOption)
		}
	case "custom":
		if opts.CustomSplit == "" {
			return opts, fmt.Errorf("%w: custom_split is required for custom split", ErrUnsupportedOption)
		}
		for _, c := range opts.CustomSplit {
			if !strings.ContainsRune("0123456789, ", c) {
				return opts, fmt.Errorf("%w: invalid character %q in custom_split", ErrUnsupportedOption, c)
			}
		}
	default:
		return opts, fmt.Errorf("%w: split_type must be one of range, every, count, custom; got %q",
			ErrUnsupportedOption, opts.Type)
	}
	return opts, nil
}

func parseCompressOptions(bag map[string]interface{}) (CompressOptions, error) {
	opts := CompressOptions{
		Level:               stringOption(bag, "compression_level", "medium"),
		OptimizeImages:      boolOption(bag, "optimize_images", true),
		OptimizeFonts:       boolOption(bag, "optimize_fonts", false),
		RemoveMetadata:      boolOption(bag, "remove_metadata", false),
		QualityPreservation: stringOption(bag, "quality_preservation", "balanced"),
	}
	switch opts.Level {
	case "low", "medium", "high":
	default:
		return opts, fmt.Errorf("%w: compression_level must be one of low, medium, high; got %q",
			ErrUnsupportedOption, opts.Level)
	}
	return opts, nil
}

func parseExcelOptions(bag map[string]interface{}) (ExcelOptions, error) {
	return ExcelOptions{
		Gridlines: boolOption(bag, "gridlines", true),
		FitToPage: boolOption(bag, "fit", true),
		Headers:   boolOption(bag, "headers", true),
		Worksheet: stringOption(bag, "worksheet", "first"),
	}, nil
}

func parseImageOptions(bag map[string]interface{}) (ImageOptions, error) {
	opts := ImageOptions{
		PageSize:       stringOption(bag, "page_size", "A4"),
		Orientation:    stringOption(bag, "orientation", "portrait"),
		Placement:      stringOption(bag, "placement", "fit"),
		AddPageNumbers: boolOption(bag, "add_page_numbers", false),
	}
	switch opts.PageSize {
	case "A4", "letter", "A5", "legal":
	default:
		return opts, fmt.Errorf("%w: page_size must be one of A4, letter, A5, legal; got %q",
			ErrUnsupportedOption, opts.PageSize)
	}
	switch opts.Orientation {
	case "portrait", "landscape":
	default:
		return opts, fmt.Errorf("%w: orientation must be portrait or landscape; got %q",
			ErrUnsupportedOption, opts.Orientation)
	}
	switch opts.Placement {
	case "fit", "full", "center", "multiple":
	default:
		return opts, fmt.Errorf("%w: placement must be one of fit, full, center, multiple; got %q",
			ErrUnsupportedOption, opts.Placement)
	}
	return opts, nil
}

// Option bags arrive as decoded JSON or multipart form values, so numbers
// and booleans may come through as strings or float64.

func stringOption(bag map[string]interface{}, key, def string) string {
	if v, ok := bag[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

func boolOption(bag map[string]interface{}, key string, def bool) bool {
	v, ok := bag[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(t) {
		case "1", "t", "true", "y", "yes", "on":
			return true
		case "0", "f", "false", "n", "no", "off", "":
			return false
		}
	}
	return def
}

func intOption(bag map[string]interface{}, key string, def int) int {
	v, ok := bag[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i
		}
	}
	return def
}

package engine

import "fmt"

// Kind identifies one conversion operation.
type Kind string

const (
	KindPDFToWord  Kind = "pdf_to_word"
	KindWordToPDF  Kind = "word_to_pdf"
	KindMergePDF   Kind = "merge_pdf"
	KindSplitPDF   Kind = "split_pdf"
	KindCompress   Kind = "compress_pdf"
	KindExcelToPDF Kind = "excel_to_pdf"
	KindImageToPDF Kind = "image_to_pdf"
)

// AllKinds lists every supported conversion kind.
var AllKinds = []Kind{
	KindPDFToWord,
	KindWordToPDF,
	KindMergePDF,
	KindSplitPDF,
	KindCompress,
	KindExcelToPDF,
	KindImageToPDF,
}

// ParseKind validates a conversion kind string.
func ParseKind(s string) (Kind, error) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown conversion kind %q", ErrUnsupportedOption, s)
}

// Input bounds per kind. Merge takes 2-10 PDFs, images 1-20; everything
// else is single-input.
func inputBounds(kind Kind) (min, max int) {
	switch kind {
	case KindMergePDF:
		return 2, 10
	case KindImageToPDF:
		return 1, 20
	default:
		return 1, 1
	}
}

// ValidateInputCount checks the number of inputs against the kind's bounds.
func ValidateInputCount(kind Kind, n int) error {
	min, max := inputBounds(kind)
	if n < min || n > max {
		if min == max {
			return fmt.Errorf("%w: %s takes exactly %d input file", ErrUnsupportedOption, kind, min)
		}
		return fmt.Errorf("%w: %s takes %d-%d input files, got %d", ErrUnsupportedOption, kind, min, max, n)
	}
	return nil
}

// InputCategory returns the validation category the kind's inputs must have.
func InputCategory(kind Kind) string {
	switch kind {
	case KindImageToPDF:
		return "image"
	case KindWordToPDF, KindExcelToPDF:
		return "document"
	default:
		return "pdf"
	}
}

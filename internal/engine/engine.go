package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/docmill/docmill/internal/logging"
)

// Input is one validated file staged on the local filesystem for a
// conversion. OriginalName is display-only and never used as a path.
type Input struct {
	Path         string
	OriginalName string
	Size         int64
}

// Result is the outcome of one conversion.
type Result struct {
	Bytes    []byte
	Filename string
	// Meta carries result metadata (e.g. compression stats) that the task
	// layer folds into the option bag at completion.
	Meta map[string]interface{}
}

// Engine runs conversion operations. Operations are stateless; Engine only
// carries the scratch-directory root.
type Engine struct {
	workRoot string
}

// New returns an Engine staging intermediate files under workRoot. An empty
// workRoot uses the system temp directory.
func New(workRoot string) *Engine {
	return &Engine{workRoot: workRoot}
}

// Convert dispatches to the handler for kind. Options must already be the
// typed struct produced by ParseOptions.
func (e *Engine) Convert(ctx context.Context, kind Kind, inputs []Input, opts interface{}) (*Result, error) {
	if err := ValidateInputCount(kind, len(inputs)); err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if _, err := os.Stat(in.Path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, in.OriginalName)
		}
	}

	switch kind {
	case KindPDFToWord:
		return e.pdfToWord(ctx, inputs[0], opts.(PDFToWordOptions))
	case KindWordToPDF:
		return e.wordToPDF(ctx, inputs[0], opts.(WordToPDFOptions))
	case KindMergePDF:
		return e.mergePDFs(ctx, inputs)
	case KindSplitPDF:
		return e.splitPDF(ctx, inputs[0], opts.(SplitOptions))
	case KindCompress:
		return e.compressPDF(ctx, inputs[0], opts.(CompressOptions))
	case KindExcelToPDF:
		return e.excelToPDF(ctx, inputs[0], opts.(ExcelOptions))
	case KindImageToPDF:
		return e.imagesToPDF(ctx, inputs, opts.(ImageOptions))
	default:
		return nil, fmt.Errorf("%w: unknown conversion kind %q", ErrUnsupportedOption, kind)
	}
}

// strategy is one candidate implementation of an operation.
type strategy struct {
	name string
	run  func() (*Result, error)
}

// runChain tries strategies in order and returns the first success. Only
// exhaustion of the whole chain is fatal; each intermediate failure is
// logged and folded into the final error.
func runChain(op string, strategies []strategy) (*Result, error) {
	var failures []string
	for _, s := range strategies {
		res, err := s.run()
		if err == nil {
			return res, nil
		}
		logging.Logf("[ENGINE] %s: strategy %s failed: %v", op, s.name, err)
		failures = append(failures, fmt.Sprintf("%s: %v", s.name, err))
	}
	return nil, fmt.Errorf("%w: %s (%s)", ErrConversionFailed, op, strings.Join(failures, "; "))
}

// tempDir creates a private scratch directory for one operation.
func (e *Engine) tempDir(op string) (string, error) {
	dir, err := os.MkdirTemp(e.workRoot, "docmill-"+op+"-")
	if err != nil {
		return "", fmt.Errorf("creating scratch dir: %w", err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("restricting scratch dir: %w", err)
	}
	return dir, nil
}

// stem returns the original filename without directory or extension, for
// building derived output names.
func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// shortID returns an 8-hex-character random tag for generated filenames.
func shortID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// mergePDFs concatenates the inputs' pages in the caller-specified order.
func (e *Engine) mergePDFs(ctx context.Context, inputs []Input) (*Result, error) {
	dir, err := e.tempDir("merge")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	inFiles := make([]string, len(inputs))
	for i, in := range inputs {
		inFiles[i] = in.Path
	}

	outPath := filepath.Join(dir, "merged.pdf")
	if err := api.MergeCreateFile(inFiles, outPath, false, pdfConfig()); err != nil {
		return nil, fmt.Errorf("%w: merging %d documents: %v", ErrConversionFailed, len(inputs), err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading merged output: %v", ErrConversionFailed, err)
	}

	return &Result{
		Bytes:    data,
		Filename: fmt.Sprintf("merged_%s.pdf", shortID()),
		Meta: map[string]interface{}{
			"merged_count": len(inputs),
		},
	}, nil
}

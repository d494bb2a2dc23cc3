package engine

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/docmill/docmill/internal/config"
)

// ExecCommand is exec.Command by default, but can be overridden in tests.
var ExecCommand = exec.Command

// gsSettings maps compression levels to Ghostscript presets.
var gsSettings = map[string]string{
	"medium": "/ebook",
	"high":   "/screen",
}

// compressPDF runs the best-effort compression chain: Ghostscript, then
// pdfcpu optimization, then a plain copy. The "low" level always copies.
// Output is never larger than the input; if every backend grows the file,
// the original bytes are returned with zero reported reduction.
func (e *Engine) compressPDF(ctx context.Context, in Input, opts CompressOptions) (*Result, error) {
	original, err := os.ReadFile(in.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, in.OriginalName)
	}

	dir, err := e.tempDir("compress")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	var compressed []byte
	if opts.Level == "low" {
		compressed = original
	} else {
		res, err := runChain("compress_pdf", []strategy{
			{"ghostscript", func() (*Result, error) {
				data, err := e.compressWithGhostscript(in.Path, dir, opts)
				return &Result{Bytes: data}, err
			}},
			{"pdfcpu-optimize", func() (*Result, error) {
				data, err := compressWithPdfcpu(in.Path, dir)
				return &Result{Bytes: data}, err
			}},
			{"copy", func() (*Result, error) {
				return &Result{Bytes: original}, nil
			}},
		})
		if err != nil {
			return nil, err
		}
		compressed = res.Bytes
	}

	if len(compressed) >= len(original) {
		compressed = original
	}

	originalSize := int64(len(original))
	compressedSize := int64(len(compressed))
	reduction := 0.0
	if originalSize > 0 {
		reduction = float64(originalSize-compressedSize) / float64(originalSize) * 100
	}

	return &Result{
		Bytes:    compressed,
		Filename: fmt.Sprintf("compressed_%s.pdf", stem(in.OriginalName)),
		Meta: map[string]interface{}{
			"original_size":     originalSize,
			"compressed_size":   compressedSize,
			"savings":           originalSize - compressedSize,
			"reduction_percent": math.Round(reduction*10) / 10,
		},
	}, nil
}

// compressWithGhostscript shells out to gs with a preset matching the
// requested level. GS_COMPAT and GS_SETTINGS env vars override defaults.
func (e *Engine) compressWithGhostscript(inPath, dir string, opts CompressOptions) ([]byte, error) {
	out := filepath.Join(dir, "gs_out.pdf")
	compat := config.Get("GS_COMPAT", "1.4")
	settings := config.Get("GS_SETTINGS", "")
	if settings == "" {
		settings = gsSettings[opts.Level]
	}
	if settings == "" {
		settings = "/ebook"
	}

	args := []string{
		"gs", "-sDEVICE=pdfwrite",
		fmt.Sprintf("-dCompatibilityLevel=%s", compat),
		fmt.Sprintf("-dPDFSETTINGS=%s", settings),
		"-dNOPAUSE", "-dBATCH", "-dQUIET",
	}
	if opts.OptimizeImages {
		args = append(args, "-dDetectDuplicateImages=true")
	}
	if opts.OptimizeFonts {
		args = append(args, "-dSubsetFonts=true", "-dCompressFonts=true")
	}
	args = append(args, fmt.Sprintf("-sOutputFile=%s", out), inPath)

	cmd := ExecCommand(args[0], args[1:]...)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running ghostscript: %w", err)
	}
	return os.ReadFile(out)
}

// compressWithPdfcpu rewrites the document with pdfcpu's optimizer.
func compressWithPdfcpu(inPath, dir string) ([]byte, error) {
	out := filepath.Join(dir, "pdfcpu_out.pdf")
	if err := api.OptimizeFile(inPath, out, pdfConfig()); err != nil {
		return nil, fmt.Errorf("optimizing pdf: %w", err)
	}
	return os.ReadFile(out)
}

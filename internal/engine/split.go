package engine

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// pageRange is a requested 1-indexed inclusive page span. Requested bounds
// may exceed the document; they are clamped when extracted but the output
// filename keeps the requested values.
type pageRange struct {
	Start int
	End   int
}

// parsePageRanges parses "1-3, 5, 7-10". Malformed parts are skipped, same
// as out-of-range pages.
func parsePageRanges(s string) []pageRange {
	var ranges []pageRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			start, err1 := strconv.Atoi(strings.TrimSpace(bounds[0]))
			end, err2 := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err1 != nil || err2 != nil {
				continue
			}
			ranges = append(ranges, pageRange{Start: start, End: end})
		} else if n, err := strconv.Atoi(part); err == nil {
			ranges = append(ranges, pageRange{Start: n, End: n})
		}
	}
	return ranges
}

// parseSplitPoints parses "3, 7" into sorted unique points.
func parseSplitPoints(s string) []int {
	seen := make(map[int]bool)
	var points []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if n, err := strconv.Atoi(part); err == nil && !seen[n] {
			seen[n] = true
			points = append(points, n)
		}
	}
	sort.Ints(points)
	return points
}

// splitPDF produces a zip archive of per-part PDFs according to the
// selected mode.
func (e *Engine) splitPDF(ctx context.Context, in Input, opts SplitOptions) (*Result, error) {
	total, err := api.PageCountFile(in.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading page count: %v", ErrConversionFailed, err)
	}

	var ranges []pageRange
	switch opts.Type {
	case "range":
		ranges = parsePageRanges(opts.Pages)
	case "every":
		ranges = coveringRanges(total, opts.Every)
	case "count":
		// Identical algorithm, differently-named parameter.
		ranges = coveringRanges(total, opts.Count)
	case "custom":
		ranges = rangesFromSplitPoints(total, parseSplitPoints(opts.CustomSplit))
	default:
		return nil, fmt.Errorf("%w: split_type %q", ErrUnsupportedOption, opts.Type)
	}

	dir, err := e.tempDir("split")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	part := 0
	for _, r := range ranges {
		// Clamp into the document; requested values stay in the filename.
		start := r.Start
		if start < 1 {
			start = 1
		}
		end := r.End
		if end > total {
			end = total
		}
		if start > end {
			continue
		}

		part++
		partPath := filepath.Join(dir, fmt.Sprintf("part_%d.pdf", part))
		sel := []string{fmt.Sprintf("%d-%d", start, end)}
		if err := api.TrimFile(in.Path, partPath, sel, pdfConfig()); err != nil {
			return nil, fmt.Errorf("%w: extracting pages %d-%d: %v", ErrConversionFailed, start, end, err)
		}

		data, err := os.ReadFile(partPath)
		if err != nil {
			return nil, fmt.Errorf("%w: reading split part: %v", ErrConversionFailed, err)
		}

		name := fmt.Sprintf("part_%d_pages_%d-%d.pdf", part, r.Start, r.End)
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("%w: archiving %s: %v", ErrConversionFailed, name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("%w: archiving %s: %v", ErrConversionFailed, name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: finalizing archive: %v", ErrConversionFailed, err)
	}

	if part == 0 {
		return nil, fmt.Errorf("%w: no pages selected from %d-page document", ErrConversionFailed, total)
	}

	return &Result{
		Bytes:    buf.Bytes(),
		Filename: fmt.Sprintf("split_%s.zip", shortID()),
		Meta: map[string]interface{}{
			"parts":       part,
			"total_pages": total,
		},
	}, nil
}

// coveringRanges partitions 1..total into sequential spans of size k.
func coveringRanges(total, k int) []pageRange {
	if k < 1 {
		return nil
	}
	var ranges []pageRange
	for start := 1; start <= total; start += k {
		end := start + k - 1
		if end > total {
			end = total
		}
		ranges = append(ranges, pageRange{Start: start, End: end})
	}
	return ranges
}

// rangesFromSplitPoints converts split points into page spans. Each valid
// point ends the current part; trailing pages form a final part. Points at
// or beyond the last page, or not past the previous point, are dropped.
func rangesFromSplitPoints(total int, points []int) []pageRange {
	var ranges []pageRange
	start := 1
	for _, p := range points {
		if p >= start && p <= total {
			ranges = append(ranges, pageRange{Start: start, End: p})
			start = p + 1
		}
	}
	if start <= total {
		ranges = append(ranges, pageRange{Start: start, End: total})
	}
	return ranges
}

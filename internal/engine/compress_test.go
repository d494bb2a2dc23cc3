package engine

import (
	"context"
	"os"
	"os/exec"
	"testing"
)

// disableGhostscript makes the gs strategy fail so the chain degrades.
func disableGhostscript(t *testing.T) {
	t.Helper()
	orig := ExecCommand
	ExecCommand = func(name string, args ...string) *exec.Cmd {
		return exec.Command("false")
	}
	t.Cleanup(func() { ExecCommand = orig })
}

func TestCompressLowReturnsInputUnchanged(t *testing.T) {
	disableGhostscript(t)
	dir := t.TempDir()
	eng := New(dir)
	path := makeTestPDF(t, dir, "in.pdf", 3, "doc")
	original, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}

	res, err := eng.compressPDF(context.Background(), Input{Path: path, OriginalName: "report.pdf"},
		CompressOptions{Level: "low"})
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(res.Bytes) != len(original) {
		t.Errorf("low level should return input unchanged: got %d bytes, want %d", len(res.Bytes), len(original))
	}
	if res.Filename != "compressed_report.pdf" {
		t.Errorf("Filename = %q, want compressed_report.pdf", res.Filename)
	}
	if res.Meta["reduction_percent"] != 0.0 {
		t.Errorf("reduction_percent = %v, want 0", res.Meta["reduction_percent"])
	}
}

func TestCompressNeverGrowsOutput(t *testing.T) {
	disableGhostscript(t)
	dir := t.TempDir()
	eng := New(dir)
	path := makeTestPDF(t, dir, "in.pdf", 5, "doc")
	original, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}

	res, err := eng.compressPDF(context.Background(), Input{Path: path, OriginalName: "in.pdf"},
		CompressOptions{Level: "medium", OptimizeImages: true})
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(res.Bytes) > len(original) {
		t.Errorf("output grew: %d > %d bytes", len(res.Bytes), len(original))
	}

	savings, ok := res.Meta["savings"].(int64)
	if !ok || savings < 0 {
		t.Errorf("savings = %v, want non-negative int64", res.Meta["savings"])
	}
	if res.Meta["original_size"].(int64) != int64(len(original)) {
		t.Errorf("original_size = %v, want %d", res.Meta["original_size"], len(original))
	}
}

func TestCompressPreservesPageCount(t *testing.T) {
	disableGhostscript(t)
	dir := t.TempDir()
	eng := New(dir)
	path := makeTestPDF(t, dir, "in.pdf", 7, "doc")

	res, err := eng.compressPDF(context.Background(), Input{Path: path, OriginalName: "in.pdf"},
		CompressOptions{Level: "high"})
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	out := writeResult(t, dir, res)
	if got := pageCount(t, out); got != 7 {
		t.Errorf("compressed page count = %d, want 7", got)
	}
}

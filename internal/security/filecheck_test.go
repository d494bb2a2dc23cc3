package security

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"
)

var (
	pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}
	pdfHeader = []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
)

func testChecker() *Checker {
	return &Checker{
		MaxSizes: map[Category]int64{
			CategoryImage:    10 << 20,
			CategoryPDF:      50 << 20,
			CategoryDocument: 20 << 20,
		},
	}
}

func TestCheckFile(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		size     int64
		wantOK   bool
		wantErr  error
		wantCat  Category
	}{
		{
			name:     "png image accepted",
			filename: "photo.png",
			content:  pngHeader,
			size:     int64(len(pngHeader)),
			wantOK:   true,
			wantCat:  CategoryImage,
		},
		{
			name:     "pdf accepted",
			filename: "report.pdf",
			content:  pdfHeader,
			size:     int64(len(pdfHeader)),
			wantOK:   true,
			wantCat:  CategoryPDF,
		},
		{
			name:     "uppercase extension normalised",
			filename: "PHOTO.PNG",
			content:  pngHeader,
			size:     int64(len(pngHeader)),
			wantOK:   true,
			wantCat:  CategoryImage,
		},
		{
			name:     "executable rejected",
			filename: "payload.exe",
			content:  pngHeader,
			size:     int64(len(pngHeader)),
			wantErr:  ErrDangerousExtension,
		},
		{
			name:     "shell script rejected",
			filename: "install.sh",
			content:  []byte("#!/bin/sh\necho hi\n"),
			size:     18,
			wantErr:  ErrDangerousExtension,
		},
		{
			name:     "extension content mismatch",
			filename: "actually-a-pdf.png",
			content:  pdfHeader,
			size:     int64(len(pdfHeader)),
			wantErr:  ErrExtensionMismatch,
		},
		{
			name:     "plain text unsupported",
			filename: "notes.txt",
			content:  []byte("just some notes"),
			size:     15,
			wantErr:  ErrUnsupportedType,
		},
		{
			name:     "image over ceiling rejected",
			filename: "huge.png",
			content:  pngHeader,
			size:     11 << 20,
			wantErr:  ErrFileTooLarge,
		},
		{
			name:     "pdf within ceiling accepted",
			filename: "big.pdf",
			content:  pdfHeader,
			size:     49 << 20,
			wantOK:   true,
			wantCat:  CategoryPDF,
		},
	}

	checker := testChecker()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := checker.CheckFile(bytes.NewReader(tt.content), tt.filename, tt.size)
			if err != nil {
				t.Fatalf("CheckFile returned unexpected error: %v", err)
			}
			if res.OK != tt.wantOK {
				t.Errorf("OK = %v, want %v (reasons: %v)", res.OK, tt.wantOK, res.Reasons)
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", res.Err, tt.wantErr)
			}
			if tt.wantErr != nil && len(res.Reasons) == 0 {
				t.Error("expected at least one rejection reason")
			}
			if tt.wantOK && res.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", res.Category, tt.wantCat)
			}
		})
	}
}

func TestCheckFileHashAndRewind(t *testing.T) {
	checker := testChecker()
	r := bytes.NewReader(pdfHeader)

	res, err := checker.CheckFile(r, "doc.pdf", int64(len(pdfHeader)))
	if err != nil {
		t.Fatalf("CheckFile: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected valid result, got reasons: %v", res.Reasons)
	}

	sum := sha256.Sum256(pdfHeader)
	if want := hex.EncodeToString(sum[:]); res.SHA256 != want {
		t.Errorf("SHA256 = %s, want %s", res.SHA256, want)
	}

	// The stream must be rewound so callers can persist it afterwards.
	rest, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading after check: %v", err)
	}
	if !bytes.Equal(rest, pdfHeader) {
		t.Error("reader position was not restored after CheckFile")
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		mime string
		want Category
	}{
		{"image/png", CategoryImage},
		{"image/jpeg", CategoryImage},
		{"application/pdf", CategoryPDF},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", CategoryDocument},
		{"application/zip", CategoryDocument},
	}
	for _, tt := range tests {
		if got := Categorize(tt.mime); got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

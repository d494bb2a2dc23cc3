package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/docmill/docmill/internal/config"
)

var (
	ErrDangerousExtension = errors.New("dangerous file extension")
	ErrUndeterminedType   = errors.New("unable to determine file type")
	ErrUnsupportedType    = errors.New("unsupported file type")
	ErrExtensionMismatch  = errors.New("file extension does not match content type")
	ErrFileTooLarge       = errors.New("file too large")
)

// Category buckets supported uploads for size-ceiling purposes.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryPDF      Category = "pdf"
	CategoryDocument Category = "document"
)

// sniffLen is how many leading bytes are fed to the content-signature
// detector. Magic numbers for every supported format live well within this.
const sniffLen = 3072

// allowedMimeTypes maps each accepted content type to the extensions it may
// legitimately carry. Office files are ZIP containers, so generic zip
// detections are accepted for .docx/.xlsx.
var allowedMimeTypes = map[string][]string{
	"application/pdf": {".pdf"},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {".docx"},
	"application/msword": {".doc"},
	"application/vnd.ms-excel": {".xls"},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {".xlsx"},
	"image/jpeg":                   {".jpg", ".jpeg"},
	"image/png":                    {".png"},
	"image/tiff":                   {".tiff", ".tif"},
	"image/bmp":                    {".bmp"},
	"image/webp":                   {".webp"},
	"application/zip":              {".xlsx", ".docx"},
	"application/x-zip-compressed": {".xlsx", ".docx"},
}

// dangerousExtensions are rejected outright, before any content inspection.
var dangerousExtensions = []string{
	".exe", ".bat", ".cmd", ".sh", ".php", ".py", ".js", ".html",
	".htm", ".jar", ".war", ".ear", ".dll", ".so", ".bin", ".app",
}

// CheckResult is the outcome of validating one upload. It is transient: the
// caller acts on it immediately and persists an artifact record instead.
type CheckResult struct {
	OK        bool
	MimeType  string
	Extension string
	Category  Category
	SHA256    string
	Reasons   []string
	Err       error
}

func (r *CheckResult) fail(err error, reason string) *CheckResult {
	r.OK = false
	r.Err = err
	r.Reasons = append(r.Reasons, reason)
	return r
}

// Checker validates uploads against per-category size ceilings.
type Checker struct {
	MaxSizes map[Category]int64
}

// NewChecker builds a Checker with env-overridable ceilings
// (MAX_IMAGE_BYTES, MAX_PDF_BYTES, MAX_DOCUMENT_BYTES).
func NewChecker() *Checker {
	return &Checker{
		MaxSizes: map[Category]int64{
			CategoryImage:    config.GetInt64("MAX_IMAGE_BYTES", 10<<20),
			CategoryPDF:      config.GetInt64("MAX_PDF_BYTES", 50<<20),
			CategoryDocument: config.GetInt64("MAX_DOCUMENT_BYTES", 20<<20),
		},
	}
}

// CheckFile validates one upload: extension denylist, content sniffing,
// allow-list membership, extension/content agreement, size ceiling, and a
// SHA-256 over the whole stream. The reader's position is restored before
// returning. Checks short-circuit: once one fails, later ones do not run.
func (c *Checker) CheckFile(r io.ReadSeeker, claimedFilename string, declaredSize int64) (*CheckResult, error) {
	res := &CheckResult{OK: true}

	name := strings.ToLower(claimedFilename)
	ext := filepath.Ext(name)
	res.Extension = ext

	for _, bad := range dangerousExtensions {
		if strings.HasSuffix(ext, bad) {
			return res.fail(ErrDangerousExtension,
				fmt.Sprintf("dangerous file extension: %s", ext)), nil
		}
	}

	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("seeking upload stream: %w", err)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading upload prefix: %w", err)
	}
	head = head[:n]

	detected := ""
	if mt := mimetype.Detect(head); mt != nil && mt.String() != "application/octet-stream" {
		detected = strings.Split(mt.String(), ";")[0]
	}
	if detected == "" {
		// Signature detection came up empty; fall back to the claimed name.
		detected = strings.Split(mime.TypeByExtension(ext), ";")[0]
		if detected == "" {
			if _, err := r.Seek(start, io.SeekStart); err != nil {
				return nil, fmt.Errorf("rewinding upload stream: %w", err)
			}
			return res.fail(ErrUndeterminedType, "unable to determine file type"), nil
		}
	}
	res.MimeType = detected

	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding upload stream: %w", err)
	}

	allowedExts, ok := allowedMimeTypes[detected]
	if !ok {
		return res.fail(ErrUnsupportedType,
			fmt.Sprintf("unsupported file type: %s", detected)), nil
	}

	extAllowed := false
	for _, allowed := range allowedExts {
		if ext == allowed {
			extAllowed = true
			break
		}
	}
	if !extAllowed {
		return res.fail(ErrExtensionMismatch,
			fmt.Sprintf("file extension %s doesn't match file type %s (expected %s)",
				ext, detected, allowedExts[0])), nil
	}

	res.Category = Categorize(detected)
	maxSize := c.MaxSizes[res.Category]
	if maxSize > 0 && declaredSize > maxSize {
		return res.fail(ErrFileTooLarge,
			fmt.Sprintf("file too large for %s type, maximum size is %dMB",
				res.Category, maxSize/(1<<20))), nil
	}

	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return nil, fmt.Errorf("hashing upload: %w", err)
	}
	res.SHA256 = hex.EncodeToString(hasher.Sum(nil))

	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding upload stream: %w", err)
	}

	return res, nil
}

// Categorize buckets a MIME type into a size category.
func Categorize(mimeType string) Category {
	switch {
	case strings.Contains(mimeType, "image"):
		return CategoryImage
	case strings.Contains(mimeType, "pdf"):
		return CategoryPDF
	default:
		return CategoryDocument
	}
}

// ExtensionsFor returns the accepted extensions for a supported MIME type.
func ExtensionsFor(mimeType string) []string {
	return allowedMimeTypes[mimeType]
}

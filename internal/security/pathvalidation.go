package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrPathTraversal  = errors.New("path contains directory traversal sequences")
	ErrAbsolutePath   = errors.New("absolute paths are not allowed")
	ErrEmptyPath      = errors.New("path cannot be empty")
	ErrInvalidPath    = errors.New("invalid path")
	ErrOutsideBaseDir = errors.New("path is outside allowed base directory")

	// ErrSuspiciousPath is the umbrella error surfaced to callers when any
	// user-influenced path segment fails sanitisation.
	ErrSuspiciousPath = errors.New("suspicious path")
)

// SanitizePath validates a user-influenced path segment. Cleaned output is
// safe to use as a relative path component; anything absolute, traversing, or
// containing NUL bytes is rejected.
func SanitizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: %w", ErrSuspiciousPath, ErrEmptyPath)
	}

	if strings.Contains(path, "\x00") {
		return "", fmt.Errorf("%w: %w", ErrSuspiciousPath, ErrInvalidPath)
	}

	if filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %w", ErrSuspiciousPath, ErrAbsolutePath)
	}

	if strings.Contains(path, "..") {
		return "", fmt.Errorf("%w: %w", ErrSuspiciousPath, ErrPathTraversal)
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == ".." || strings.HasPrefix(cleanPath, "../") {
		return "", fmt.Errorf("%w: %w", ErrSuspiciousPath, ErrPathTraversal)
	}

	return cleanPath, nil
}

// IsWithin reports whether candidate resolves to base or a descendant of it.
func IsWithin(base, candidate string) bool {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return false
	}
	if absCandidate == absBase {
		return true
	}
	return strings.HasPrefix(absCandidate, absBase+string(filepath.Separator))
}

// ValidateStorageKey checks a slash-separated storage key for traversal and
// malformed segments. Keys are always server-generated, so any failure here
// indicates a bug or tampering.
func ValidateStorageKey(key string) error {
	if key == "" {
		return ErrEmptyPath
	}

	if strings.Contains(key, "..") {
		return ErrPathTraversal
	}

	if filepath.IsAbs(key) {
		return ErrAbsolutePath
	}

	if strings.Contains(key, "\x00") {
		return ErrInvalidPath
	}

	parts := strings.Split(key, "/")
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return ErrPathTraversal
		}
	}

	return nil
}

// SafeJoin joins userPath onto basePath after sanitisation, guaranteeing the
// result stays inside basePath.
func SafeJoin(basePath, userPath string) (string, error) {
	clean, err := SanitizePath(userPath)
	if err != nil {
		return "", err
	}

	result := filepath.Join(basePath, clean)
	if !IsWithin(basePath, result) {
		return "", fmt.Errorf("%w: %w", ErrSuspiciousPath, ErrOutsideBaseDir)
	}
	return result, nil
}

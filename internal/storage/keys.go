package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	UploadPrefix    = "uploads/"
	ConvertedPrefix = "converted/"
)

// UploadKey generates the storage key for a validated upload. The key embeds
// only the artifact ID and extension, never the client-supplied filename.
func UploadKey(artifactID uuid.UUID, ext string) string {
	return fmt.Sprintf("uploads/%s%s", artifactID.String(), normalizeExt(ext))
}

// ConvertedKey generates the storage key for a conversion output.
func ConvertedKey(taskID uuid.UUID, ext string) string {
	return fmt.Sprintf("converted/%s%s", taskID.String(), normalizeExt(ext))
}

// IsUploadKey checks if a storage key is for an uploaded artifact.
func IsUploadKey(key string) bool {
	return strings.HasPrefix(key, UploadPrefix)
}

// IsConvertedKey checks if a storage key is for a conversion output.
func IsConvertedKey(key string) bool {
	return strings.HasPrefix(key, ConvertedPrefix)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

package security

import (
	"fmt"
	"os"
	"path/filepath"
)

// WorkDir is a private scratch directory for one conversion operation.
type WorkDir struct {
	Path string
}

// NewWorkDir creates a 0700 temp directory under the system temp root. The
// prefix shows up in the directory name for easier debugging of leftovers.
func NewWorkDir(prefix string) (*WorkDir, error) {
	dir, err := os.MkdirTemp("", prefix+"-")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("restricting work dir permissions: %w", err)
	}
	return &WorkDir{Path: dir}, nil
}

// File returns the path of name inside the work dir, rejecting anything that
// would escape it.
func (w *WorkDir) File(name string) (string, error) {
	return SafeJoin(w.Path, name)
}

// Cleanup removes the work dir and everything in it. Safe to call twice.
func (w *WorkDir) Cleanup() {
	if w.Path != "" {
		os.RemoveAll(w.Path)
		w.Path = ""
	}
}

// Join places a server-generated name in the work dir. Only the base name is
// used, so the result cannot escape the directory.
func (w *WorkDir) Join(name string) string {
	return filepath.Join(w.Path, filepath.Base(name))
}

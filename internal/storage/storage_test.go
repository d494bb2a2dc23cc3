package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestFilesystemBackendRoundTrip(t *testing.T) {
	fs := NewFilesystemBackend(t.TempDir())
	ctx := context.Background()
	key := "uploads/test.pdf"

	if err := fs.Put(ctx, key, strings.NewReader("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	exists, err := fs.Exists(ctx, key)
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v; want true, nil", exists, err)
	}

	rc, err := fs.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("reading object: %v", err)
	}
	if !bytes.Equal(data, []byte("hello")) {
		t.Errorf("Get returned %q, want %q", data, "hello")
	}

	info, err := fs.GetInfo(ctx, key)
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if info.Size != 5 {
		t.Errorf("Size = %d, want 5", info.Size)
	}

	if err := fs.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	exists, _ = fs.Exists(ctx, key)
	if exists {
		t.Error("object should be gone after Delete")
	}
	// Deleting a missing key is not an error.
	if err := fs.Delete(ctx, key); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestFilesystemBackendList(t *testing.T) {
	fs := NewFilesystemBackend(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"uploads/a.pdf", "uploads/b.docx", "converted/c.pdf"} {
		if err := fs.Put(ctx, key, strings.NewReader("x")); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}

	keys, err := fs.List(ctx, "uploads/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("List returned %d keys, want 2: %v", len(keys), keys)
	}

	keys, err = fs.List(ctx, "missing/")
	if err != nil {
		t.Fatalf("List missing prefix: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("missing prefix should list nothing, got %v", keys)
	}
}

func TestFilesystemBackendRejectsTraversal(t *testing.T) {
	fs := NewFilesystemBackend(t.TempDir())
	ctx := context.Background()

	if err := fs.Put(ctx, "../escape.pdf", strings.NewReader("x")); err == nil {
		t.Error("Put with traversal key should fail")
	}
	if _, err := fs.Get(ctx, "uploads/../../etc/passwd"); err == nil {
		t.Error("Get with traversal key should fail")
	}
}

func TestFilesystemBackendRemoveEmptyDirs(t *testing.T) {
	fs := NewFilesystemBackend(t.TempDir())
	ctx := context.Background()

	if err := fs.Put(ctx, "uploads/a.pdf", strings.NewReader("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := fs.Put(ctx, "converted/b.pdf", strings.NewReader("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := fs.Delete(ctx, "converted/b.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := fs.RemoveEmptyDirs(ctx); err != nil {
		t.Fatalf("RemoveEmptyDirs: %v", err)
	}

	// The populated prefix survives, the emptied one is gone.
	keys, err := fs.List(ctx, "uploads/")
	if err != nil || len(keys) != 1 {
		t.Errorf("uploads/ should still hold one object: %v, %v", keys, err)
	}
}

func TestKeyGeneration(t *testing.T) {
	id := uuid.MustParse("0b06907c-3f94-4a6f-9c1e-000000000001")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"upload key", UploadKey(id, ".pdf"), "uploads/0b06907c-3f94-4a6f-9c1e-000000000001.pdf"},
		{"converted key", ConvertedKey(id, ".docx"), "converted/0b06907c-3f94-4a6f-9c1e-000000000001.docx"},
		{"missing dot", UploadKey(id, "pdf"), "uploads/0b06907c-3f94-4a6f-9c1e-000000000001.pdf"},
		{"uppercase ext", UploadKey(id, ".PDF"), "uploads/0b06907c-3f94-4a6f-9c1e-000000000001.pdf"},
		{"no ext", UploadKey(id, ""), "uploads/0b06907c-3f94-4a6f-9c1e-000000000001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}

	if !IsUploadKey(UploadKey(id, ".pdf")) {
		t.Error("IsUploadKey should match generated upload keys")
	}
	if !IsConvertedKey(ConvertedKey(id, ".pdf")) {
		t.Error("IsConvertedKey should match generated converted keys")
	}
}

package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ziadkadry99/clinrag/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLocalStoreListFiltersByInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dsm5.pdf"), "%PDF")
	writeFile(t, filepath.Join(dir, "notes", "manual.txt"), "texto")
	writeFile(t, filepath.Join(dir, "image.png"), "png")
	writeFile(t, filepath.Join(dir, ".hidden", "secret.txt"), "x")

	store := NewLocalStore([]string{"*.pdf", "**/*.txt"})
	files, err := store.List(context.Background(), dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %+v", files)
	}

	byName := map[string]File{}
	for _, f := range files {
		byName[f.Name] = f
	}
	if byName["dsm5.pdf"].MimeType != "application/pdf" {
		t.Errorf("pdf mime = %q", byName["dsm5.pdf"].MimeType)
	}
	if byName["manual.txt"].MimeType != "text/plain" {
		t.Errorf("txt mime = %q", byName["manual.txt"].MimeType)
	}

	data, err := store.Download(context.Background(), byName["manual.txt"].ID)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "texto" {
		t.Errorf("Download = %q", data)
	}
}

func TestLocalStoreMissingFolder(t *testing.T) {
	store := NewLocalStore(nil)
	if _, err := store.List(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing folder")
	}
}

func TestSplitBucket(t *testing.T) {
	tests := []struct {
		ref, bucket, rest string
	}{
		{"gs://clinical/dsm", "clinical", "dsm"},
		{"clinical", "clinical", ""},
		{"clinical/a/b.pdf", "clinical", "a/b.pdf"},
	}
	for _, tt := range tests {
		b, r := splitBucket(tt.ref)
		if b != tt.bucket || r != tt.rest {
			t.Errorf("splitBucket(%q) = %q, %q", tt.ref, b, r)
		}
	}
}

func TestNewFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig().Retrieval
	cfg.FileStore = config.FileStoreLocal
	cfg.Folder = dir

	store, folder, err := NewFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*LocalStore); !ok || folder != dir {
		t.Errorf("got %T %q", store, folder)
	}

	t.Setenv("DSM5_DRIVE_FOLDER_ID", "")
	cfg.FileStore = config.FileStoreDrive
	cfg.Folder = ""
	_, _, err = NewFromConfig(context.Background(), cfg)
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "DSM5_DRIVE_FOLDER_ID" {
		t.Errorf("expected missing folder id error, got %v", err)
	}
}

// Package filestore lists and downloads the knowledge documents the retriever
// reads: a Google Drive folder, a GCS bucket prefix or a local directory.
package filestore

import (
	"context"
	"fmt"
	"os"

	"github.com/ziadkadry99/clinrag/internal/config"
)

// File describes one document in a store.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

// FileStore is the document source consumed by the retriever.
type FileStore interface {
	List(ctx context.Context, folder string) ([]File, error)
	Download(ctx context.Context, id string) ([]byte, error)
}

// NewFromConfig opens the store named by retrieval.file_store. The returned
// folder is the reference to pass to List; for Drive it falls back to
// DSM5_DRIVE_FOLDER_ID when retrieval.folder is empty.
func NewFromConfig(ctx context.Context, cfg config.RetrievalConfig) (FileStore, string, error) {
	folder := cfg.Folder
	switch cfg.FileStore {
	case config.FileStoreDrive:
		if folder == "" {
			f, err := config.RequireEnv("DSM5_DRIVE_FOLDER_ID")
			if err != nil {
				return nil, "", err
			}
			folder = f
		}
		store, err := NewDriveStore(ctx, os.Getenv("GOOGLE_DRIVE_API_KEY"))
		if err != nil {
			return nil, "", err
		}
		return store, folder, nil
	case config.FileStoreGCS:
		if folder == "" {
			return nil, "", &config.ConfigurationError{Field: "retrieval.folder", Reason: "gcs store needs bucket[/prefix]"}
		}
		store, err := NewGCSStore(ctx)
		if err != nil {
			return nil, "", err
		}
		return store, folder, nil
	case config.FileStoreLocal:
		if folder == "" {
			return nil, "", &config.ConfigurationError{Field: "retrieval.folder", Reason: "local store needs a directory"}
		}
		return NewLocalStore(cfg.Include), folder, nil
	default:
		return nil, "", &config.ConfigurationError{
			Field:  "retrieval.file_store",
			Reason: fmt.Sprintf("unsupported file store %q", cfg.FileStore),
		}
	}
}

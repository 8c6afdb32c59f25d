package filestore

import (
	"context"
	"fmt"
	"io"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/ziadkadry99/clinrag/internal/gcpcreds"
)

// DriveStore reads files from a Google Drive folder.
type DriveStore struct {
	svc *drive.Service
}

// NewDriveStore authenticates with apiKey when set (public folders) and with
// service credentials from the environment otherwise.
func NewDriveStore(ctx context.Context, apiKey string) (*DriveStore, error) {
	var opts []option.ClientOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else {
		opts = append(opts, option.WithScopes(drive.DriveReadonlyScope))
		opts = append(opts, gcpcreds.ClientOptionsFromEnv()...)
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}
	return &DriveStore{svc: svc}, nil
}

// List returns the non-trashed files directly inside folder.
func (s *DriveStore) List(ctx context.Context, folder string) ([]File, error) {
	var out []File
	q := fmt.Sprintf("'%s' in parents and trashed = false", folder)
	err := s.svc.Files.List().
		Q(q).
		Fields("nextPageToken, files(id, name, mimeType)").
		PageSize(100).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				out = append(out, File{ID: f.Id, Name: f.Name, MimeType: f.MimeType})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("drive list %s: %w", folder, err)
	}
	return out, nil
}

// Download fetches the raw bytes of a file.
func (s *DriveStore) Download(ctx context.Context, id string) ([]byte, error) {
	resp, err := s.svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("drive download %s: %w", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("drive read %s: %w", id, err)
	}
	return data, nil
}

package filestore

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/ziadkadry99/clinrag/internal/gcpcreds"
)

// GCSStore reads documents from a bucket. Folders are "bucket" or
// "bucket/prefix"; file IDs are "bucket/object".
type GCSStore struct {
	client *storage.Client
}

// NewGCSStore opens a storage client with credentials from the environment.
func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := storage.NewClient(ctx, gcpcreds.ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func splitBucket(ref string) (bucket, rest string) {
	ref = strings.TrimPrefix(ref, "gs://")
	bucket, rest, _ = strings.Cut(ref, "/")
	return bucket, rest
}

func (s *GCSStore) List(ctx context.Context, folder string) ([]File, error) {
	bucket, prefix := splitBucket(folder)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	var out []File
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list %s: %w", folder, err)
		}
		if attrs.Name == "" {
			// Sub-prefix entries produced by the delimiter.
			continue
		}
		mimeType := attrs.ContentType
		if mimeType == "" {
			mimeType = mime.TypeByExtension(path.Ext(attrs.Name))
		}
		out = append(out, File{
			ID:       bucket + "/" + attrs.Name,
			Name:     path.Base(attrs.Name),
			MimeType: mimeType,
		})
	}
	return out, nil
}

func (s *GCSStore) Download(ctx context.Context, id string) ([]byte, error) {
	bucket, object := splitBucket(id)
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs open %s: %w", id, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", id, err)
	}
	return data, nil
}

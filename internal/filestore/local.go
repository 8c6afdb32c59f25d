package filestore

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// LocalStore serves documents from a directory tree. IDs are absolute paths.
type LocalStore struct {
	include []string
}

// NewLocalStore keeps files matching any include glob; no globs keeps all.
func NewLocalStore(include []string) *LocalStore {
	return &LocalStore{include: include}
}

func (s *LocalStore) List(ctx context.Context, folder string) ([]File, error) {
	root, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("local store: resolve root: %w", err)
	}
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}

	var out []File
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || !s.matches(rel) {
			return nil
		}
		out = append(out, File{
			ID:       p,
			Name:     d.Name(),
			MimeType: mimeFor(d.Name()),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("local store: walk %s: %w", root, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *LocalStore) Download(ctx context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(id)
	if err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	return data, nil
}

// matches tries each glob against the relative path and the bare file name.
func (s *LocalStore) matches(rel string) bool {
	if len(s.include) == 0 {
		return true
	}
	normalized := filepath.ToSlash(rel)
	base := filepath.Base(normalized)
	for _, pattern := range s.include {
		pattern = filepath.ToSlash(pattern)
		if ok, err := doublestar.PathMatch(pattern, normalized); err == nil && ok {
			return true
		}
		if ok, err := doublestar.PathMatch(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

func mimeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".md":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

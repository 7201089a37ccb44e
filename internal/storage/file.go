package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "sheetload/internal/errors"
)

// FileStore keeps objects as files under Root, addressed by key. Buckets are
// not modeled: the same key in two buckets is the same file.
type FileStore struct {
	Root   string
	logger *slog.Logger
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{Root: dir, logger: logger.With(slog.String("component", "file_store"))}
}

// Fetch reads the file for key
func (s *FileStore) Fetch(_ context.Context, bucket, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(bucket, key, err)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(bucket, key, err)
	}
	return body, nil
}

// Put writes the file for key, creating parent directories
func (s *FileStore) Put(_ context.Context, bucket, key string, body []byte) error {
	path, err := s.resolve(key)
	if err != nil {
		return apperrors.NewSinkUnavailableError(fmt.Sprintf("cannot write %s", key), err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewSinkUnavailableError("failed to create directory", err)
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return apperrors.NewSinkUnavailableError(fmt.Sprintf("cannot write %s", path), err)
	}

	s.logger.Info("Wrote file",
		slog.String("bucket", bucket),
		slog.String("path", path),
		slog.Int("bytes", len(body)))
	return nil
}

func (s *FileStore) resolve(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("key %q escapes the store root", key)
	}
	return filepath.Join(s.Root, rel), nil
}

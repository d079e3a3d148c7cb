package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore writes report artifacts beneath a base directory. Each artifact
// is staged next to its final path and renamed into place, so a run that
// dies mid-write never leaves a truncated report where a complete one is
// expected.
type LocalStore struct {
	BasePath string
}

func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &LocalStore{BasePath: basePath}, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader) error {
	dest := filepath.Join(s.BasePath, key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	staged, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.partial")
	if err != nil {
		return fmt.Errorf("failed to stage report: %w", err)
	}
	defer os.Remove(staged.Name())

	if _, err := io.Copy(staged, r); err != nil {
		staged.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := staged.Close(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}

	if err := os.Rename(staged.Name(), dest); err != nil {
		return fmt.Errorf("failed to finalize report: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore writes avatars to <BaseDir>/avatar and serves them back under
// <PublicBase>/<name>.
type DiskStore struct {
	BaseDir    string
	PublicBase string // e.g. "/avatar"
}

func NewDiskStore(baseDir, publicBase string) *DiskStore {
	return &DiskStore{BaseDir: baseDir, PublicBase: publicBase}
}

// Dir returns the directory avatars are written to.
func (s *DiskStore) Dir() string {
	return filepath.Join(s.BaseDir, "avatar")
}

func (s *DiskStore) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := s.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create avatar dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create avatar file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write avatar file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("flush avatar file: %w", err)
	}
	return s.PublicBase + "/" + name, nil
}

var _ Store = (*DiskStore)(nil)

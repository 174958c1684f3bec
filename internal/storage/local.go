package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"moments/internal/models"
)

// Local writes images below a directory that fiber serves at URLPrefix.
type Local struct {
	Root      string
	URLPrefix string
}

func NewLocal(root, urlPrefix string) (*Local, error) {
	// Ensure upload directory exists
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Local{Root: root, URLPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

func (l *Local) path(key string) (string, error) {
	p := filepath.Join(l.Root, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.Root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("key %q escapes storage root", key)
	}
	return p, nil
}

func (l *Local) Save(ctx context.Context, key string, upload *models.Upload) error {
	destPath, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create album dir: %w", err)
	}

	src, err := upload.Open()
	if err != nil {
		return fmt.Errorf("failed to read uploaded file: %w", err)
	}
	defer src.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, src); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (l *Local) URL(key string) string {
	return l.URLPrefix + "/" + escapeKey(key)
}

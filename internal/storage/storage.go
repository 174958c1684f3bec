package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"moments/internal/config"
	"moments/internal/models"
)

var ErrNotFound = errors.New("object not found")

// Storage keeps uploaded image files. Keys are slash separated.
type Storage interface {
	Save(ctx context.Context, key string, upload *models.Upload) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New builds the backend named by cfg.Backend. Local files are served at /media.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.MediaDir, "/media")
	case "minio":
		return ConnectMinio(ctx, cfg)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// encodeSegment percent-encodes one key segment. Distinct inputs give
// distinct segments, and the result never contains a separator or a bare
// "." / ".." element.
func encodeSegment(s string) string {
	if strings.Trim(s, ".") == "" {
		return strings.Repeat("%2E", len(s))
	}
	return url.PathEscape(s)
}

// ImageKey builds <owner>/albums/<album>/<title><ext> with every segment
// percent-encoded. Untitled photos keep the uploaded file's base name.
func ImageKey(owner, album, title, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := path.Ext(base)
	name := title
	if name == "" {
		name = strings.TrimSuffix(base, ext)
	}
	return fmt.Sprintf("%s/albums/%s/%s%s", encodeSegment(owner), encodeSegment(album), encodeSegment(name), url.PathEscape(ext))
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

package db

import (
	"context"
	"errors"
	"strings"

	"moments/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUserExists    = errors.New("user already exists")
	ErrAlbumExists   = errors.New("album already exists")
	ErrPhotoConflict = errors.New("photo conflicts with another photo in the album")
)

// Store is the relational persistence used by the services.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// ListPublicAlbums returns every public album, newest first.
	ListPublicAlbums(ctx context.Context) ([]models.Album, error)
	// ListAlbumsByOwner returns the owner's albums in storage order.
	ListAlbumsByOwner(ctx context.Context, ownerID int64, publicOnly bool) ([]models.Album, error)
	GetAlbum(ctx context.Context, ownerName, albumName string, publicOnly bool) (*models.Album, error)
	ListPhotos(ctx context.Context, albumID int64) ([]models.Photo, error)

	// CreateAlbum inserts the album and its photos in one transaction. When
	// beforeCommit is set it runs after the rows are written; an error from it
	// rolls everything back.
	CreateAlbum(ctx context.Context, album models.Album, photos []models.Photo, beforeCommit func(*models.Album) error) (*models.Album, error)
	DeleteAlbum(ctx context.Context, albumID int64) error

	Close()
}

// Open picks the backend from the DSN scheme: sqlite:// or postgres://.
func Open(ctx context.Context, dsn string) (Store, error) {
	if path, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		return OpenSQLite(path)
	}
	return OpenPostgres(ctx, dsn)
}

// nullable turns an empty title into NULL so untitled photos never collide
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"moments/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a single-file Store used for local development and tests.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *SQLite) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := models.User{Username: username, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, user.CreatedAt)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	if user.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLite) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

const sqliteAlbumColumns = `a.id, a.name, a.owner_id, u.username, a.public, a.created_at`

func (s *SQLite) ListPublicAlbums(ctx context.Context) ([]models.Album, error) {
	query := `SELECT ` + sqliteAlbumColumns + `
		FROM albums a JOIN users u ON u.id = a.owner_id
		WHERE a.public = 1
		ORDER BY a.created_at DESC, a.id DESC`
	return s.queryAlbums(ctx, query)
}

func (s *SQLite) ListAlbumsByOwner(ctx context.Context, ownerID int64, publicOnly bool) ([]models.Album, error) {
	query := `SELECT ` + sqliteAlbumColumns + `
		FROM albums a JOIN users u ON u.id = a.owner_id
		WHERE a.owner_id = ? AND (a.public = 1 OR ? = 0)
		ORDER BY a.id`
	return s.queryAlbums(ctx, query, ownerID, publicOnly)
}

func (s *SQLite) queryAlbums(ctx context.Context, query string, args ...any) ([]models.Album, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	defer rows.Close()

	var albums []models.Album
	for rows.Next() {
		var a models.Album
		if err := rows.Scan(&a.ID, &a.Name, &a.OwnerID, &a.OwnerName, &a.Public, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan album: %w", err)
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

func (s *SQLite) GetAlbum(ctx context.Context, ownerName, albumName string, publicOnly bool) (*models.Album, error) {
	query := `SELECT ` + sqliteAlbumColumns + `
		FROM albums a JOIN users u ON u.id = a.owner_id
		WHERE u.username = ? AND a.name = ? AND (a.public = 1 OR ? = 0)`

	var a models.Album
	err := s.db.QueryRowContext(ctx, query, ownerName, albumName, publicOnly).
		Scan(&a.ID, &a.Name, &a.OwnerID, &a.OwnerName, &a.Public, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get album: %w", err)
	}
	return &a, nil
}

func (s *SQLite) ListPhotos(ctx context.Context, albumID int64) ([]models.Photo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, album_id, title, image FROM photos WHERE album_id = ? ORDER BY id`, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var (
			photo        models.Photo
			title, image sql.NullString
		)
		if err := rows.Scan(&photo.ID, &photo.AlbumID, &title, &image); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photo.Title = title.String
		photo.Image = image.String
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

func (s *SQLite) CreateAlbum(ctx context.Context, album models.Album, photos []models.Photo, beforeCommit func(*models.Album) error) (*models.Album, error) {
	if album.CreatedAt.IsZero() {
		album.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO albums (name, owner_id, public, created_at) VALUES (?, ?, ?, ?)`,
		album.Name, album.OwnerID, album.Public, album.CreatedAt.UTC())
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, ErrAlbumExists
		}
		return nil, fmt.Errorf("failed to insert album: %w", err)
	}
	if album.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}

	album.Photos = make([]models.Photo, 0, len(photos))
	for _, photo := range photos {
		photo.AlbumID = album.ID
		res, err := tx.ExecContext(ctx, `INSERT INTO photos (title, album_id, image) VALUES (?, ?, ?)`,
			nullable(photo.Title), album.ID, photo.Image)
		if err != nil {
			if isSQLiteUnique(err) {
				return nil, ErrPhotoConflict
			}
			return nil, fmt.Errorf("failed to insert photo: %w", err)
		}
		if photo.ID, err = res.LastInsertId(); err != nil {
			return nil, err
		}
		album.Photos = append(album.Photos, photo)
	}

	if beforeCommit != nil {
		if err := beforeCommit(&album); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &album, nil
}

func (s *SQLite) DeleteAlbum(ctx context.Context, albumID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM albums WHERE id = ?`, albumID)
	if err != nil {
		return fmt.Errorf("failed to delete album: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func isSQLiteUnique(err error) bool {
	var sqErr sqlite3.Error
	return errors.As(err, &sqErr) && sqErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

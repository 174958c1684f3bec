package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"moments/internal/models"
)

const pgUniqueViolation = "23505"

// Postgres is the production Store backed by a pgx connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

// OpenPostgres initializes the PostgreSQL connection pool
func OpenPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

// Close closes the database connection pool
func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}

func (p *Postgres) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := models.User{Username: username, PasswordHash: passwordHash}
	query := `INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id, created_at`
	err := p.Pool.QueryRow(ctx, query, username, passwordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isPgUnique(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return &user, nil
}

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, password_hash, created_at FROM users WHERE username = $1`
	err := p.Pool.QueryRow(ctx, query, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

const pgAlbumColumns = `a.id, a.name, a.owner_id, u.username, a.public, a.created_at`

func (p *Postgres) ListPublicAlbums(ctx context.Context) ([]models.Album, error) {
	query := `SELECT ` + pgAlbumColumns + `
		FROM albums a JOIN users u ON u.id = a.owner_id
		WHERE a.public
		ORDER BY a.created_at DESC, a.id DESC`
	return p.queryAlbums(ctx, query)
}

func (p *Postgres) ListAlbumsByOwner(ctx context.Context, ownerID int64, publicOnly bool) ([]models.Album, error) {
	query := `SELECT ` + pgAlbumColumns + `
		FROM albums a JOIN users u ON u.id = a.owner_id
		WHERE a.owner_id = $1 AND (a.public OR NOT $2::boolean)
		ORDER BY a.id`
	return p.queryAlbums(ctx, query, ownerID, publicOnly)
}

func (p *Postgres) queryAlbums(ctx context.Context, query string, args ...any) ([]models.Album, error) {
	rows, err := p.Pool.Query(ctx, query, args...)
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

func (p *Postgres) GetAlbum(ctx context.Context, ownerName, albumName string, publicOnly bool) (*models.Album, error) {
	query := `SELECT ` + pgAlbumColumns + `
		FROM albums a JOIN users u ON u.id = a.owner_id
		WHERE u.username = $1 AND a.name = $2 AND (a.public OR NOT $3::boolean)`

	var a models.Album
	err := p.Pool.QueryRow(ctx, query, ownerName, albumName, publicOnly).
		Scan(&a.ID, &a.Name, &a.OwnerID, &a.OwnerName, &a.Public, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get album: %w", err)
	}
	return &a, nil
}

func (p *Postgres) ListPhotos(ctx context.Context, albumID int64) ([]models.Photo, error) {
	query := `SELECT id, album_id, title, image FROM photos WHERE album_id = $1 ORDER BY id`
	rows, err := p.Pool.Query(ctx, query, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var (
			photo        models.Photo
			title, image *string
		)
		if err := rows.Scan(&photo.ID, &photo.AlbumID, &title, &image); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		if title != nil {
			photo.Title = *title
		}
		if image != nil {
			photo.Image = *image
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

func (p *Postgres) CreateAlbum(ctx context.Context, album models.Album, photos []models.Photo, beforeCommit func(*models.Album) error) (*models.Album, error) {
	if album.CreatedAt.IsZero() {
		album.CreatedAt = time.Now().UTC()
	}

	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO albums (name, owner_id, public, created_at) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	err = tx.QueryRow(ctx, query, album.Name, album.OwnerID, album.Public, album.CreatedAt).Scan(&album.ID, &album.CreatedAt)
	if err != nil {
		if isPgUnique(err) {
			return nil, ErrAlbumExists
		}
		return nil, fmt.Errorf("failed to insert album: %w", err)
	}

	album.Photos = make([]models.Photo, 0, len(photos))
	for _, photo := range photos {
		photo.AlbumID = album.ID
		err := tx.QueryRow(ctx, `INSERT INTO photos (title, album_id, image) VALUES ($1, $2, $3) RETURNING id`,
			nullable(photo.Title), album.ID, photo.Image).Scan(&photo.ID)
		if err != nil {
			if isPgUnique(err) {
				return nil, ErrPhotoConflict
			}
			return nil, fmt.Errorf("failed to insert photo: %w", err)
		}
		album.Photos = append(album.Photos, photo)
	}

	if beforeCommit != nil {
		if err := beforeCommit(&album); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &album, nil
}

func (p *Postgres) DeleteAlbum(ctx context.Context, albumID int64) error {
	tag, err := p.Pool.Exec(ctx, `DELETE FROM albums WHERE id = $1`, albumID)
	if err != nil {
		return fmt.Errorf("failed to delete album: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isPgUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

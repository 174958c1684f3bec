package services

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"moments/internal/db"
	"moments/internal/models"
	"moments/internal/storage"
)

type recordingFeed struct {
	mu     sync.Mutex
	albums []models.Album
}

func (f *recordingFeed) PublishAlbum(album models.Album) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.albums = append(f.albums, album)
}

type testEnv struct {
	store  *db.SQLite
	files  *storage.Memory
	feed   *recordingFeed
	users  *UserService
	albums *AlbumService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)

	env := &testEnv{
		store: store,
		files: storage.NewMemory(),
		feed:  &recordingFeed{},
	}
	env.users = NewUserService(store, "test-secret", time.Hour)
	env.users.HashCost = bcrypt.MinCost
	env.albums = NewAlbumService(store, env.files, env.feed, log)
	return env
}

func (e *testEnv) requester(t *testing.T, username string) *models.Requester {
	t.Helper()
	u, err := e.store.CreateUser(context.Background(), username, "hash")
	require.NoError(t, err)
	return &models.Requester{ID: u.ID, Username: u.Username}
}

func imageUpload(name string, data string) *models.Upload {
	return &models.Upload{
		Filename: name,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte(data))), nil
		},
	}
}

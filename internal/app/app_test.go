package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"moments/internal/db"
	"moments/internal/handlers"
	"moments/internal/models"
	"moments/internal/storage"
)

const albumDetailMarker = `id="album-detail"`

type testServer struct {
	*Server
	store *db.SQLite
	files *storage.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)

	files := storage.NewMemory()
	srv := New(Deps{
		Log:           log,
		Store:         store,
		Files:         files,
		SessionSecret: "test-secret",
		SessionTTL:    time.Hour,
	})
	srv.Users.HashCost = bcrypt.MinCost
	return &testServer{Server: srv, store: store, files: files}
}

func (ts *testServer) user(t *testing.T, username string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := ts.store.CreateUser(context.Background(), username, string(hash))
	require.NoError(t, err)
	return u
}

func (ts *testServer) album(t *testing.T, owner *models.User, name string, public bool, created time.Time, photos ...models.Photo) *models.Album {
	t.Helper()
	a, err := ts.store.CreateAlbum(context.Background(), models.Album{Name: name, OwnerID: owner.ID, Public: public, CreatedAt: created}, photos, nil)
	require.NoError(t, err)
	return a
}

func (ts *testServer) loginAs(t *testing.T, req *http.Request, u *models.User) {
	t.Helper()
	token, err := ts.Users.IssueSession(u)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: handlers.SessionCookie, Value: token})
}

func (ts *testServer) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := ts.App.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, string(body)
}

type upload struct {
	field, filename, data string
}

func multipartRequest(t *testing.T, target string, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.data))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","feed_subscribers":0}`, body)

	ts.Feed.Register("listener", discardConn{})
	t.Cleanup(func() { ts.Feed.Unregister("listener") })
	_, body = ts.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok","feed_subscribers":1}`, body)
}

type discardConn struct{}

func (discardConn) WriteJSON(interface{}) error { return nil }

func TestHome_SplashOrWelcome(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")

	_, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, body, `id="splash"`)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ts.loginAs(t, req, u)
	_, body = ts.do(t, req)
	assert.Contains(t, body, `id="welcome"`)
	assert.Contains(t, body, "Welcome back, test_user")
}

func TestAlbumDetail_PrivateAnonymousIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")
	ts.album(t, u, "private_album", false, time.Now())

	resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/test_user/albums/private_album", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "401: Unauthorized")
	assert.NotContains(t, body, albumDetailMarker)
}

func TestAlbumDetail_PrivateOtherUserIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")
	other := ts.user(t, "other_user")
	ts.album(t, u, "private_album", false, time.Now())

	req := httptest.NewRequest(http.MethodGet, "/test_user/albums/private_album", nil)
	ts.loginAs(t, req, other)
	resp, body := ts.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotContains(t, body, albumDetailMarker)
}

func TestAlbumDetail_OwnerSeesPrivateAlbum(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")
	ts.album(t, u, "private_album", false, time.Now(), models.Photo{Title: "beach", Image: "test_user/albums/private_album/beach.jpg"})

	req := httptest.NewRequest(http.MethodGet, "/test_user/albums/private_album", nil)
	ts.loginAs(t, req, u)
	resp, body := ts.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, albumDetailMarker)
	assert.Contains(t, body, "/media/test_user/albums/private_album/beach.jpg")

	// Home -> User Profile -> album
	assert.Contains(t, body, `<a href="/test_user/">User Profile</a>`)
	assert.Contains(t, body, `<li class="current">private_album</li>`)
}

func TestAlbumDetail_PublicAndMissing(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")
	ts.album(t, u, "summer trip", true, time.Now())

	resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/test_user/albums/summer%20trip", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, albumDetailMarker)

	resp, _ = ts.do(t, httptest.NewRequest(http.MethodGet, "/test_user/albums/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, httptest.NewRequest(http.MethodGet, "/nobody/albums/summer%20trip", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProfile_Visibility(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")
	other := ts.user(t, "other_user")
	ts.album(t, u, "public_album", true, time.Now())
	ts.album(t, u, "private_album", false, time.Now())

	resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/test_user/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `id="user-detail"`)
	assert.Contains(t, body, "public_album")
	assert.NotContains(t, body, "private_album")

	req := httptest.NewRequest(http.MethodGet, "/test_user/", nil)
	ts.loginAs(t, req, other)
	_, body = ts.do(t, req)
	assert.NotContains(t, body, "private_album")

	req = httptest.NewRequest(http.MethodGet, "/test_user/", nil)
	ts.loginAs(t, req, u)
	_, body = ts.do(t, req)
	assert.Contains(t, body, "private_album")

	resp, _ = ts.do(t, httptest.NewRequest(http.MethodGet, "/nobody/", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublicAlbums_NewestFirst(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts.album(t, u, "older", true, base)
	ts.album(t, u, "newer", true, base.Add(time.Hour))
	ts.album(t, u, "hidden", false, base.Add(2*time.Hour))

	resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/albums/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "hidden")
	newer, older := strings.Index(body, ">newer<"), strings.Index(body, ">older<")
	require.True(t, newer > 0 && older > 0, body)
	assert.Less(t, newer, older)
}

func TestREST_AlbumList(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")
	other := ts.user(t, "other_user")
	created := time.Date(2024, 1, 1, 12, 0, 0, 123456000, time.UTC)
	ts.album(t, u, "public_album", true, created)
	ts.album(t, u, "private_album", false, created.Add(time.Second))

	publicOnly := `[{"name":"public_album","created":"2024-01-01T12:00:00.123Z"}]`

	resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/rest/test_user", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, publicOnly, body)

	req := httptest.NewRequest(http.MethodGet, "/rest/test_user", nil)
	ts.loginAs(t, req, other)
	_, body = ts.do(t, req)
	assert.JSONEq(t, publicOnly, body)

	// bearer tokens work as well as the cookie
	token, err := ts.Users.IssueSession(u)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/rest/test_user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	_, body = ts.do(t, req)
	assert.JSONEq(t, `[
		{"name":"public_album","created":"2024-01-01T12:00:00.123Z"},
		{"name":"private_album","created":"2024-01-01T12:00:01.123Z"}
	]`, body)

	_, body = ts.do(t, httptest.NewRequest(http.MethodGet, "/rest/nobody", nil))
	assert.JSONEq(t, `[]`, body)
}

func TestREST_AlbumDetail(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")
	other := ts.user(t, "other_user")
	created := time.Date(2024, 2, 2, 8, 30, 0, 0, time.UTC)
	ts.album(t, u, "private_album", false, created,
		models.Photo{Title: "one", Image: "k1.jpg"},
		models.Photo{Title: "two", Image: "k2.jpg"},
	)

	req := httptest.NewRequest(http.MethodGet, "/rest/test_user/private_album", nil)
	ts.loginAs(t, req, other)
	resp, body := ts.do(t, req)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "REST reports a hidden album as missing, not 401")
	assert.JSONEq(t, `{"error":"Not found."}`, body)

	req = httptest.NewRequest(http.MethodGet, "/rest/test_user/private_album", nil)
	ts.loginAs(t, req, u)
	resp, body = ts.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{
		"name":"private_album",
		"created":"2024-02-02T08:30:00.000Z",
		"photos":[{"title":"one"},{"title":"two"}]
	}`, body)
}

func TestNewAlbum_RequiresLogin(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(t, httptest.NewRequest(http.MethodGet, "/albums/new", nil))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Falbums%2Fnew", resp.Header.Get("Location"))
}

func TestNewAlbum_FormHasFivePhotoSlots(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")

	req := httptest.NewRequest(http.MethodGet, "/albums/new", nil)
	ts.loginAs(t, req, u)
	resp, body := ts.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.MaxPhotoForms, strings.Count(body, `type="file"`))
	assert.Contains(t, body, `name="photos-4-image"`)
}

func TestCreateAlbum_SuccessRedirects(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")

	req := multipartRequest(t, "/albums/new",
		map[string]string{"name": "test_album", "public": "on", "photos-0-title": "beach"},
		upload{field: "photos-0-image", filename: "IMG_0001.jpg", data: "jpeg-bytes"},
	)
	ts.loginAs(t, req, u)
	resp, _ := ts.do(t, req)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/test_user/albums/test_album", resp.Header.Get("Location"))

	album, err := ts.store.GetAlbum(context.Background(), "test_user", "test_album", false)
	require.NoError(t, err)
	assert.True(t, album.Public)

	photos, err := ts.store.ListPhotos(context.Background(), album.ID)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "beach", photos[0].Title)

	data, ok := ts.files.Get("test_user/albums/test_album/beach.jpg")
	require.True(t, ok)
	assert.Equal(t, "jpeg-bytes", string(data))

	// the stored image is served back
	resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/media/test_user/albums/test_album/beach.jpg", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "jpeg-bytes", body)
}

func TestCreateAlbum_DuplicateNameRerendersForm(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")
	ts.album(t, u, "test_album", true, time.Now())

	req := multipartRequest(t, "/albums/new",
		map[string]string{"name": "test_album", "photos-0-title": "beach"},
		upload{field: "photos-0-image", filename: "beach.jpg", data: "x"},
	)
	ts.loginAs(t, req, u)
	resp, body := ts.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `id="album-new"`)
	assert.Contains(t, body, "An album already exists for user &#39;test_user&#39; with name &#39;test_album&#39;")

	albums, err := ts.store.ListAlbumsByOwner(context.Background(), u.ID, false)
	require.NoError(t, err)
	assert.Len(t, albums, 1)
	assert.Empty(t, ts.files.Keys())
}

func TestCreateAlbum_TitleWithoutImage(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")

	req := multipartRequest(t, "/albums/new", map[string]string{"name": "test_album", "public": "on", "photos-2-title": "lonely"})
	ts.loginAs(t, req, u)
	resp, body := ts.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Image field cannot be empty.")
	assert.Contains(t, body, `value="lonely"`)

	_, err := ts.store.GetAlbum(context.Background(), "test_user", "test_album", false)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestCreateAlbum_ReservedName(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")

	req := formRequest("/albums/new", url.Values{"name": {"New"}})
	ts.loginAs(t, req, u)
	resp, body := ts.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Good one, please use a different album title.")
}

func TestCreateAlbum_SlashInNameIsRejected(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")

	req := formRequest("/albums/new", url.Values{"name": {"a/b"}, "public": {"on"}})
	ts.loginAs(t, req, u)
	resp, body := ts.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Album names cannot contain &#34;/&#34;.")

	albums, err := ts.store.ListAlbumsByOwner(context.Background(), u.ID, false)
	require.NoError(t, err)
	assert.Empty(t, albums)
}

func TestCreateAlbum_RedirectTargetIsReachable(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")

	for _, name := range []string{"what? 100%", `back\slash`, "caf\u00e9 #1"} {
		t.Run(name, func(t *testing.T) {
			req := formRequest("/albums/new", url.Values{"name": {name}, "public": {"on"}})
			ts.loginAs(t, req, u)
			resp, _ := ts.do(t, req)
			require.Equal(t, http.StatusFound, resp.StatusCode)
			location := resp.Header.Get("Location")

			resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, location, nil))
			assert.Equal(t, http.StatusOK, resp.StatusCode, location)
			assert.Contains(t, body, albumDetailMarker)

			restPath := "/rest/test_user/" + strings.TrimPrefix(location, "/test_user/albums/")
			resp, body = ts.do(t, httptest.NewRequest(http.MethodGet, restPath, nil))
			assert.Equal(t, http.StatusOK, resp.StatusCode, restPath)

			var payload map[string]any
			require.NoError(t, json.Unmarshal([]byte(body), &payload))
			assert.Equal(t, name, payload["name"])
		})
	}
}

func TestSignUp_LogsInAndRedirects(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, formRequest("/sign-up", url.Values{
		"username":  {"new_user"},
		"password1": {"correct horse"},
		"password2": {"correct horse"},
	}))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.True(t, hasSessionCookie(resp))

	_, err := ts.store.GetUserByUsername(context.Background(), "new_user")
	assert.NoError(t, err)

	resp, body := ts.do(t, formRequest("/sign-up", url.Values{
		"username":  {"new_user"},
		"password1": {"correct horse"},
		"password2": {"correct horse"},
	}))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "A user with that username already exists.")
}

func TestSignUp_AuthenticatedIsRedirected(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "test_user")

	for _, path := range []string{"/sign-up", "/login"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		ts.loginAs(t, req, u)
		resp, _ := ts.do(t, req)
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/", resp.Header.Get("Location"), path)
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.user(t, "test_user")

	resp, body := ts.do(t, formRequest("/login", url.Values{"username": {"test_user"}, "password": {"wrong"}}))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Please enter a correct username and password.")
	assert.False(t, hasSessionCookie(resp))

	resp, _ = ts.do(t, formRequest("/login?next=%2Falbums%2Fnew", url.Values{"username": {"test_user"}, "password": {"password123"}}))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/albums/new", resp.Header.Get("Location"))
	assert.True(t, hasSessionCookie(resp))

	resp, _ = ts.do(t, formRequest("/login?next=https%3A%2F%2Fevil.example", url.Values{"username": {"test_user"}, "password": {"password123"}}))
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestLogin_KeepsNextInForm(t *testing.T) {
	ts := newTestServer(t)
	_, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/login?next=/albums/new", nil))
	assert.Contains(t, body, `action="/login?next=%2falbums%2fnew"`)
}

func TestFeed_RequiresUpgrade(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(t, httptest.NewRequest(http.MethodGet, "/ws/albums", nil))
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestUnknownRoute_RendersErrorPage(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/a/b/c/d", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, `id="error"`)
}

func TestErrorResponse_JSONUnderREST(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/rest/a/b/c", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.NotEmpty(t, payload["error"])
}

func hasSessionCookie(resp *http.Response) bool {
	for _, c := range resp.Cookies() {
		if c.Name == handlers.SessionCookie && c.Value != "" {
			return true
		}
	}
	return false
}

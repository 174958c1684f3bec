package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"moments/internal/db"
	"moments/internal/models"
	"moments/internal/storage"
)

var ErrNotAuthorized = errors.New("not authorized")

// Outcome of the album creation workflow
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeValidationFailed
	OutcomeNameConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNameConflict:
		return "name_conflict"
	default:
		return "validation_failed"
	}
}

// CreateResult carries the created album or the errors to show on the form.
// PhotoErrors has one entry per submitted photo slot.
type CreateResult struct {
	Outcome     Outcome
	Album       *models.Album
	AlbumErrors models.FieldErrors
	PhotoErrors []models.FieldErrors
}

// AlbumPublisher is told about newly created public albums
type AlbumPublisher interface {
	PublishAlbum(album models.Album)
}

type AlbumService struct {
	store db.Store
	files storage.Storage
	feed  AlbumPublisher
	log   *logrus.Logger
}

func NewAlbumService(store db.Store, files storage.Storage, feed AlbumPublisher, log *logrus.Logger) *AlbumService {
	return &AlbumService{store: store, files: files, feed: feed, log: log}
}

func (s *AlbumService) ImageURL(photo models.Photo) string {
	if photo.Image == "" {
		return ""
	}
	return s.files.URL(photo.Image)
}

// ListPublic lists every public album, newest first
func (s *AlbumService) ListPublic(ctx context.Context) ([]models.Album, error) {
	return s.store.ListPublicAlbums(ctx)
}

// Profile returns the user and the albums of theirs the requester may see
func (s *AlbumService) Profile(ctx context.Context, username string, requester *models.Requester) (*models.User, []models.Album, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}

	albums, err := s.store.ListAlbumsByOwner(ctx, user.ID, false)
	if err != nil {
		return nil, nil, err
	}

	visible := albums[:0]
	for _, a := range albums {
		if CanView(requester, a) {
			visible = append(visible, a)
		}
	}
	return user, visible, nil
}

// Detail loads an album page. A private album of someone else is
// ErrNotAuthorized, an unknown one db.ErrNotFound.
func (s *AlbumService) Detail(ctx context.Context, owner, name string, requester *models.Requester) (*models.Album, error) {
	album, err := s.store.GetAlbum(ctx, owner, name, false)
	if err != nil {
		return nil, err
	}
	if !CanView(requester, *album) {
		return nil, ErrNotAuthorized
	}
	if album.Photos, err = s.store.ListPhotos(ctx, album.ID); err != nil {
		return nil, err
	}
	return album, nil
}

// APIList is the REST album list. The query itself is restricted, so an
// unknown user simply has no albums.
func (s *AlbumService) APIList(ctx context.Context, username string, requester *models.Requester) ([]models.Album, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return []models.Album{}, nil
		}
		return nil, err
	}
	return s.store.ListAlbumsByOwner(ctx, user.ID, PublicOnly(requester, username))
}

// APIDetail is the REST album detail. Private albums of others are
// indistinguishable from missing ones here.
func (s *AlbumService) APIDetail(ctx context.Context, username, name string, requester *models.Requester) (*models.Album, error) {
	album, err := s.store.GetAlbum(ctx, username, name, PublicOnly(requester, username))
	if err != nil {
		return nil, err
	}
	if album.Photos, err = s.store.ListPhotos(ctx, album.ID); err != nil {
		return nil, err
	}
	return album, nil
}

func conflictMessage(owner, name string) string {
	return fmt.Sprintf("An album already exists for user '%s' with name '%s'", owner, name)
}

// Create runs the album creation workflow. Validation problems come back in
// the result; the error is only for infrastructure failures.
func (s *AlbumService) Create(ctx context.Context, requester *models.Requester, form models.AlbumForm, photoForms []models.PhotoForm) (*CreateResult, error) {
	if requester == nil {
		return nil, ErrNotAuthorized
	}
	if len(photoForms) > models.MaxPhotoForms {
		photoForms = photoForms[:models.MaxPhotoForms]
	}

	form.Name = strings.TrimSpace(form.Name)
	res := &CreateResult{
		Outcome:     OutcomeValidationFailed,
		AlbumErrors: form.Validate(),
		PhotoErrors: make([]models.FieldErrors, len(photoForms)),
	}

	conflict := false
	if !res.AlbumErrors.Any() {
		_, err := s.store.GetAlbum(ctx, requester.Username, form.Name, false)
		switch {
		case err == nil:
			conflict = true
			res.AlbumErrors.Add("name", conflictMessage(requester.Username, form.Name))
		case !errors.Is(err, db.ErrNotFound):
			return nil, err
		}
	}

	photos, uploads, photosValid := s.collectPhotos(requester.Username, form.Name, photoForms, res.PhotoErrors)

	if res.AlbumErrors.Any() || !photosValid {
		if conflict && photosValid {
			res.Outcome = OutcomeNameConflict
		}
		return res, nil
	}

	var saved []string
	album, err := s.store.CreateAlbum(ctx, models.Album{
		Name:      form.Name,
		OwnerID:   requester.ID,
		OwnerName: requester.Username,
		Public:    form.Public,
	}, photos, func(*models.Album) error {
		// rows are in place, so a racing request with the same name has
		// already failed on the unique constraint before touching files
		for i, photo := range photos {
			if err := s.files.Save(ctx, photo.Image, uploads[i]); err != nil {
				return err
			}
			saved = append(saved, photo.Image)
		}
		return nil
	})
	if err != nil {
		s.removeFiles(ctx, saved)
		switch {
		case errors.Is(err, db.ErrAlbumExists):
			res.AlbumErrors.Add("name", conflictMessage(requester.Username, form.Name))
			res.Outcome = OutcomeNameConflict
			return res, nil
		case errors.Is(err, db.ErrPhotoConflict):
			res.AlbumErrors.Add("photos", "Photos in an album need distinct titles and images.")
			return res, nil
		}
		return nil, fmt.Errorf("failed to create album: %w", err)
	}

	album.OwnerName = requester.Username
	s.log.WithFields(logrus.Fields{
		"owner":  album.OwnerName,
		"album":  album.Name,
		"photos": len(album.Photos),
	}).Info("album created")

	if album.Public && s.feed != nil {
		s.feed.PublishAlbum(*album)
	}

	res.Outcome = OutcomeSuccess
	res.Album = album
	return res, nil
}

// collectPhotos validates the photo slots and turns the filled ones into rows.
// errs is filled per slot.
func (s *AlbumService) collectPhotos(owner, albumName string, forms []models.PhotoForm, errs []models.FieldErrors) ([]models.Photo, []*models.Upload, bool) {
	var (
		photos  []models.Photo
		uploads []*models.Upload
		valid   = true
		titles  = map[string]bool{}
		keys    = map[string]bool{}
	)

	for i, pf := range forms {
		errs[i] = models.FieldErrors{}
		if pf.IsEmpty() {
			continue
		}
		if fe := pf.Validate(); fe.Any() {
			errs[i] = fe
			valid = false
			continue
		}

		title := strings.TrimSpace(pf.Title)
		if title != "" && titles[title] {
			errs[i].Add("title", "Photo with this Title and Album already exists.")
			valid = false
			continue
		}
		key := storage.ImageKey(owner, albumName, title, pf.Image.Filename)
		if keys[key] {
			errs[i].Add("image", "Photo with this Album and Image already exists.")
			valid = false
			continue
		}
		titles[title] = true
		keys[key] = true

		photos = append(photos, models.Photo{Title: title, Image: key})
		uploads = append(uploads, pf.Image)
	}
	return photos, uploads, valid
}

func (s *AlbumService) removeFiles(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.files.Delete(ctx, key); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("failed to remove stored image")
		}
	}
}

package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"moments/internal/models"
	"moments/internal/services"
)

// photoSlot is one photo input group on the new album form
type photoSlot struct {
	Index  int
	Title  string
	Errors models.FieldErrors
}

// NewAlbumFormHandler shows an empty album form
func NewAlbumFormHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return renderAlbumForm(c, models.AlbumForm{Public: true}, make([]models.PhotoForm, models.MaxPhotoForms), nil)
	}
}

// CreateAlbumHandler runs the creation workflow for a submitted form
func CreateAlbumHandler(albums *services.AlbumService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, photos := parseAlbumForm(c)

		res, err := albums.Create(c.Context(), CurrentRequester(c), form, photos)
		if err != nil {
			return err
		}
		if res.Outcome == services.OutcomeSuccess {
			return c.Redirect(res.Album.URL(), fiber.StatusFound)
		}
		return renderAlbumForm(c, form, photos, res)
	}
}

func renderAlbumForm(c *fiber.Ctx, form models.AlbumForm, photos []models.PhotoForm, res *services.CreateResult) error {
	albumErrs := models.FieldErrors{}
	slots := make([]photoSlot, len(photos))
	for i, p := range photos {
		slots[i] = photoSlot{Index: i, Title: p.Title, Errors: models.FieldErrors{}}
	}
	if res != nil {
		albumErrs = res.AlbumErrors
		for i := range slots {
			if i < len(res.PhotoErrors) && res.PhotoErrors[i] != nil {
				slots[i].Errors = res.PhotoErrors[i]
			}
		}
	}

	return render(c, fiber.StatusOK, "albums/new", fiber.Map{
		"Form":        form,
		"Errors":      albumErrs,
		"Slots":       slots,
		"Breadcrumbs": crumbs(current("New Album")),
	})
}

// parseAlbumForm reads the album fields and the fixed set of photo slots
// named photos-<n>-title / photos-<n>-image.
func parseAlbumForm(c *fiber.Ctx) (models.AlbumForm, []models.PhotoForm) {
	form := models.AlbumForm{
		Name:   c.FormValue("name"),
		Public: isChecked(c.FormValue("public")),
	}

	var files map[string][]*multipart.FileHeader
	if mf, err := c.MultipartForm(); err == nil {
		files = mf.File
	}

	photos := make([]models.PhotoForm, models.MaxPhotoForms)
	for i := range photos {
		photos[i].Title = c.FormValue(fmt.Sprintf("photos-%d-title", i))
		if fhs := files[fmt.Sprintf("photos-%d-image", i)]; len(fhs) > 0 && fhs[0].Filename != "" {
			photos[i].Image = uploadFromHeader(fhs[0])
		}
	}
	return form, photos
}

func uploadFromHeader(fh *multipart.FileHeader) *models.Upload {
	return &models.Upload{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func isChecked(v string) bool {
	switch strings.ToLower(v) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"moments/internal/db"
	"moments/internal/models"
	"moments/internal/services"
)

type albumJSON struct {
	Name    string `json:"name"`
	Created string `json:"created"`
}

type photoJSON struct {
	Title string `json:"title"`
}

type albumDetailJSON struct {
	albumJSON
	Photos []photoJSON `json:"photos"`
}

func toAlbumJSON(a models.Album) albumJSON {
	return albumJSON{Name: a.Name, Created: models.FormatTimestamp(a.CreatedAt)}
}

// RESTAlbumListHandler returns the user's albums the requester may see
func RESTAlbumListHandler(albums *services.AlbumService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := albums.APIList(c.Context(), c.Params("username"), CurrentRequester(c))
		if err != nil {
			return err
		}

		resp := make([]albumJSON, 0, len(list))
		for _, a := range list {
			resp = append(resp, toAlbumJSON(a))
		}
		return c.JSON(resp)
	}
}

// RESTAlbumDetailHandler returns one album with its photo titles; private
// albums of others are reported as missing
func RESTAlbumDetailHandler(albums *services.AlbumService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		album, err := albums.APIDetail(c.Context(), c.Params("username"), c.Params("name"), CurrentRequester(c))
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "Not found.")
			}
			return err
		}

		resp := albumDetailJSON{albumJSON: toAlbumJSON(*album), Photos: make([]photoJSON, 0, len(album.Photos))}
		for _, p := range album.Photos {
			resp.Photos = append(resp.Photos, photoJSON{Title: p.Title})
		}
		return c.JSON(resp)
	}
}

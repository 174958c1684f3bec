package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"moments/internal/db"
	"moments/internal/models"
	"moments/internal/services"
)

// photoView is a photo as the album page shows it
type photoView struct {
	Title string
	URL   string
}

// HomeHandler shows the splash page to visitors and the welcome page to users
func HomeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentRequester(c) == nil {
			return render(c, fiber.StatusOK, "splash", fiber.Map{})
		}
		return render(c, fiber.StatusOK, "welcome", fiber.Map{})
	}
}

// PublicAlbumsHandler lists every public album, newest first
func PublicAlbumsHandler(albums *services.AlbumService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := albums.ListPublic(c.Context())
		if err != nil {
			return err
		}
		return render(c, fiber.StatusOK, "albums/list", fiber.Map{
			"Albums":      list,
			"Breadcrumbs": crumbs(current("Albums")),
		})
	}
}

// ProfileHandler shows a user and the albums the requester may see
func ProfileHandler(albums *services.AlbumService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		username := c.Params("username")
		requester := CurrentRequester(c)

		user, list, err := albums.Profile(c.Context(), username, requester)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return fiber.ErrNotFound
			}
			return err
		}

		return render(c, fiber.StatusOK, "profiles/user_detail", fiber.Map{
			"CurrentUser": user,
			"IsOwner":     requester != nil && requester.ID == user.ID,
			"Albums":      list,
			"Breadcrumbs": crumbs(current("User Profile")),
		})
	}
}

// AlbumDetailHandler renders one album, 401 for someone else's private album
func AlbumDetailHandler(albums *services.AlbumService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		username := c.Params("username")

		album, err := albums.Detail(c.Context(), username, c.Params("name"), CurrentRequester(c))
		switch {
		case errors.Is(err, db.ErrNotFound):
			return fiber.ErrNotFound
		case errors.Is(err, services.ErrNotAuthorized):
			return render(c, fiber.StatusUnauthorized, "error", fiber.Map{"ErrorMsg": "401: Unauthorized"})
		case err != nil:
			return err
		}

		photos := make([]photoView, 0, len(album.Photos))
		for _, p := range album.Photos {
			photos = append(photos, photoView{Title: p.Title, URL: albums.ImageURL(p)})
		}

		return render(c, fiber.StatusOK, "albums/detail", fiber.Map{
			"Album":   album,
			"Created": models.FormatTimestamp(album.CreatedAt),
			"Photos":  photos,
			"Breadcrumbs": crumbs(
				models.Breadcrumb{Label: "User Profile", Target: "/" + username + "/"},
				current(album.Name),
			),
		})
	}
}

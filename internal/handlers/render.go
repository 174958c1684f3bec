package handlers

import (
	"github.com/gofiber/fiber/v2"

	"moments/internal/models"
)

const baseLayout = "layouts/base"

// render executes a page template inside the base layout
func render(c *fiber.Ctx, status int, name string, data fiber.Map) error {
	data["Requester"] = CurrentRequester(c)
	if _, ok := data["Breadcrumbs"]; !ok {
		data["Breadcrumbs"] = []models.Breadcrumb{}
	}
	return c.Status(status).Render(name, data, baseLayout)
}

func home() models.Breadcrumb {
	return models.Breadcrumb{Label: "Home", Target: "/"}
}

func crumbs(items ...models.Breadcrumb) []models.Breadcrumb {
	return append([]models.Breadcrumb{home()}, items...)
}

func current(label string) models.Breadcrumb {
	return models.Breadcrumb{Label: label}
}

package handlers

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"moments/internal/models"
	"moments/internal/services"
)

const (
	SessionCookie = "moments_session"

	requesterKey = "requester"
)

// Session attaches the requester named by the session cookie (or a bearer
// token) to the request. Requests without a valid session stay anonymous.
func Session(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(SessionCookie)
		if token == "" {
			authHeader := c.Get("Authorization")
			if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
				token = authHeader[7:]
			}
		}

		if token != "" {
			requester, err := users.ParseSession(token)
			if err == nil {
				c.Locals(requesterKey, requester)
			} else if c.Cookies(SessionCookie) != "" {
				c.ClearCookie(SessionCookie)
			}
		}

		return c.Next()
	}
}

// CurrentRequester is nil for anonymous requests
func CurrentRequester(c *fiber.Ctx) *models.Requester {
	requester, _ := c.Locals(requesterKey).(*models.Requester)
	return requester
}

// RequireLogin sends anonymous users to the login page and back afterwards
func RequireLogin(c *fiber.Ctx) error {
	if CurrentRequester(c) == nil {
		return c.Redirect("/login?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusFound)
	}
	return c.Next()
}

func startSession(c *fiber.Ctx, users *services.UserService, user *models.User) error {
	token, err := users.IssueSession(user)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(users.SessionTTL()),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

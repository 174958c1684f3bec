package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"moments/internal/models"
	"moments/internal/services"
)

const loginFailedMsg = "Please enter a correct username and password. Note that both fields may be case-sensitive."

// SignUpHandler creates an account and logs it in
func SignUpHandler(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentRequester(c) != nil {
			return c.Redirect("/", fiber.StatusFound)
		}

		data := fiber.Map{
			"Errors":      models.FieldErrors{},
			"Username":    "",
			"Breadcrumbs": crumbs(current("Sign Up")),
		}

		if c.Method() == fiber.MethodPost {
			username := c.FormValue("username")
			user, errs, err := users.Register(c.Context(), username, c.FormValue("password1"), c.FormValue("password2"))
			if err != nil {
				return err
			}
			if user != nil {
				if err := startSession(c, users, user); err != nil {
					return err
				}
				return c.Redirect("/", fiber.StatusFound)
			}
			data["Errors"] = errs
			data["Username"] = username
		}

		return render(c, fiber.StatusOK, "auth/sign-up", data)
	}
}

// LoginHandler checks credentials and follows ?next= on success
func LoginHandler(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentRequester(c) != nil {
			return c.Redirect("/", fiber.StatusFound)
		}

		next := c.Query("next")
		data := fiber.Map{
			"Next":        next,
			"Error":       "",
			"Username":    "",
			"Breadcrumbs": crumbs(current("Login")),
		}

		if c.Method() == fiber.MethodPost {
			username := c.FormValue("username")
			user, err := users.Login(c.Context(), username, c.FormValue("password"))
			switch {
			case errors.Is(err, services.ErrInvalidCredentials):
				data["Error"] = loginFailedMsg
				data["Username"] = username
			case err != nil:
				return err
			default:
				if err := startSession(c, users, user); err != nil {
					return err
				}
				return c.Redirect(services.SafeRedirect(next), fiber.StatusFound)
			}
		}

		return render(c, fiber.StatusOK, "auth/login", data)
	}
}

func LogoutHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.ClearCookie(SessionCookie)
		return c.Redirect("/", fiber.StatusFound)
	}
}

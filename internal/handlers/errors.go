package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ErrorHandler renders JSON errors for the API and an error page elsewhere
func ErrorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := http.StatusText(code)

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		}

		if code >= fiber.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}).Error("request failed")
			msg = http.StatusText(code)
		}

		if isAPIPath(c.Path()) {
			return c.Status(code).JSON(fiber.Map{"error": msg})
		}

		if rerr := render(c, code, "error", fiber.Map{"ErrorMsg": fmt.Sprintf("%d: %s", code, msg)}); rerr != nil {
			log.WithError(rerr).Error("failed to render error page")
			return c.Status(code).SendString(msg)
		}
		return nil
	}
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/rest/") || path == "/rest" || strings.HasPrefix(path, "/ws/")
}

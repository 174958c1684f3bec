package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// FeedHandler keeps a websocket open and pushes album events to it
func FeedHandler(hub *FeedHub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		connID := uuid.New().String()
		done := hub.Register(connID, c)

		defer func() {
			hub.Unregister(connID)
			<-done // the conn is recycled once this handler returns
			c.Close()
		}()

		// Subscribers only listen; reading detects the close. All writes
		// happen on the hub's writer goroutine.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					hub.log.WithError(err).WithField("conn", connID).Debug("feed connection closed")
				}
				return
			}
		}
	})
}

// WSUpgradeMiddleware rejects plain HTTP requests to websocket routes
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

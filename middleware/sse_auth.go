// board-arena-system/middleware/sse_auth.go
package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware authenticates EventSource connections. Browsers cannot
// set headers on EventSource requests, so the gateway token and user id
// arrive as query params instead.
//
// Usage:
//
//	app.Get("/arena/notify", middleware.SSEAuthMiddleware(), tournamentService.StreamStateSSE)
func SSEAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("ARENA_SERVICE_TOKEN")

	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		userID := strings.TrimSpace(c.Query("user_id"))

		if accessToken == "" || userID == "" {
			log.Printf("[SSEAuth] ❌ Missing query params for %s (token len=%d, user_id='%s')",
				c.Path(), len(accessToken), userID)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token or user_id in query",
			})
		}

		if accessToken != expectedToken {
			log.Printf("[SSEAuth] ❌ Invalid token for user %s (prefix: %.10s...)", userID, accessToken)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}

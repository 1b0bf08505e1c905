// handlers/progression_routes.go
package handlers

import (
	"board-arena-system/middleware"
	"board-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(app *fiber.App, progressionService *services.ProgressionService) {
	// 🔓 Public routes — *no user context*, but **still require Gateway auth**
	app.Get("/leaderboard", progressionService.GetLeaderboard)
	app.Get("/users/:user_id/standing", progressionService.GetStanding)

	// 🔐 Secured routes — the caller's own standing, resolved from context
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/user/standing", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		return progressionService.StandingFor(c, userID)
	})
}

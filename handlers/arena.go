// handlers/arena.go
package handlers

import (
	"board-arena-system/middleware"
	"board-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupArenaRoutes(app *fiber.App, tournamentService *services.TournamentService) {
	// 🔓 SSE stream — EventSource cannot set headers, so auth comes from query
	app.Get("/arena/notify", middleware.SSEAuthMiddleware(), tournamentService.StreamStateSSE)

	// 🔐 Secured routes — require user context (userID), enforced via middleware
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Session lifecycle
	secured.Post("/arena/:type/session", tournamentService.HandleStartSession)
	secured.Get("/arena/:type/session", tournamentService.HandleGetState)
	secured.Delete("/arena/sessions", tournamentService.HandleClearSessions)

	// Dungeon is staged, not daily
	secured.Post("/arena/dungeon/stages/:stage", tournamentService.HandleStartDungeonStage)

	// Round and match flow
	secured.Post("/arena/:type/rounds", tournamentService.HandleStartRound)
	secured.Post("/arena/:type/matches", tournamentService.HandleStartMatch)
	secured.Post("/arena/:type/tick", tournamentService.HandleAdvanceTick)
	secured.Post("/arena/:type/result", tournamentService.HandleCompleteSimulation)

	// Forfeits
	secured.Post("/arena/:type/forfeit", tournamentService.HandleForfeitTournament)
	secured.Post("/arena/:type/matches/forfeit", tournamentService.HandleForfeitCurrentMatch)

	// In-tournament economy
	secured.Post("/arena/:type/potion", tournamentService.HandleUseConditionPotion)
	secured.Post("/arena/:type/reward", tournamentService.HandleClaimReward)
}

package services

import (
	"errors"
	"log"
	"time"

	"board-arena-system/models"

	"github.com/gofiber/fiber/v2"
)

// errorResponse maps engine errors onto the HTTP boundary: validation 400,
// precondition conflicts 409, missing state 404, everything else a generic
// 500 with the detail kept in the server log.
func errorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrMalformedResult),
		errors.Is(err, ErrInvalidStage),
		errors.Is(err, ErrUnknownPotion):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrTournamentNotFound),
		errors.Is(err, ErrUserNotFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrWrongStatus),
		errors.Is(err, ErrNoPendingMatch),
		errors.Is(err, ErrMatchInProgress),
		errors.Is(err, ErrRoundNotReady),
		errors.Is(err, ErrLeagueTooLow),
		errors.Is(err, ErrAlreadyClaimed),
		errors.Is(err, ErrNotComplete),
		errors.Is(err, ErrConditionFull),
		errors.Is(err, ErrNoPotion),
		errors.Is(err, ErrInsufficientGold):
		return c.Status(409).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Printf("ERROR tournament action failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
}

func actionContext(c *fiber.Ctx) (userID string, typ models.TournamentType) {
	return c.Locals("user_id").(string), models.TournamentType(c.Params("type"))
}

// HandleStartSession opens (or returns) the user's tournament of this type.
func (s *TournamentService) HandleStartSession(c *fiber.Ctx) error {
	userID, typ := actionContext(c)
	var req struct {
		ForceNew bool `json:"force_new"`
	}
	// Empty body means no forceNew; only reject bodies that fail to parse.
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
		}
	}

	st, err := s.StartSession(userID, typ, req.ForceNew)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"redirect": "/arena/" + string(typ),
		"state":    st,
	})
}

// HandleStartDungeonStage opens a staged dungeon attempt.
func (s *TournamentService) HandleStartDungeonStage(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	stage, err := c.ParamsInt("stage")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid stage number"})
	}
	st, err := s.StartDungeonStage(userID, stage)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"redirect": "/arena/dungeon",
		"state":    st,
	})
}

// HandleStartRound refreshes the field for the next round.
func (s *TournamentService) HandleStartRound(c *fiber.Ctx) error {
	userID, typ := actionContext(c)
	st, err := s.StartRound(userID, typ)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"state": st})
}

// HandleStartMatch arms the entrant's next match.
func (s *TournamentService) HandleStartMatch(c *fiber.Ctx) error {
	userID, typ := actionContext(c)
	st, err := s.StartMatch(userID, typ)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"redirect": "/arena/" + string(typ) + "/play",
		"state":    st,
	})
}

// HandleAdvanceTick progresses the in-flight playback when enough wall-clock
// time has passed; an early call is a successful no-op.
func (s *TournamentService) HandleAdvanceTick(c *fiber.Ctx) error {
	userID, typ := actionContext(c)
	var req struct {
		ClientTimestamp string `json:"client_timestamp"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
		}
	}
	var clientTS time.Time
	if req.ClientTimestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.ClientTimestamp)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid client_timestamp (use RFC3339)"})
		}
		clientTS = parsed
	}

	st, advanced, err := s.AdvanceTick(userID, typ, clientTS)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"advanced": advanced, "state": st})
}

// HandleCompleteSimulation accepts the client's match result.
func (s *TournamentService) HandleCompleteSimulation(c *fiber.Ctx) error {
	userID, typ := actionContext(c)
	var req ClientResult
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.WinnerID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "winner_id is required"})
	}

	st, err := s.CompleteSimulation(userID, typ, req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"state": st})
}

// HandleForfeitTournament exits the whole tournament.
func (s *TournamentService) HandleForfeitTournament(c *fiber.Ctx) error {
	userID, typ := actionContext(c)
	if err := s.ForfeitTournament(userID, typ); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "tournament forfeited"})
}

// HandleForfeitCurrentMatch concedes only the current match.
func (s *TournamentService) HandleForfeitCurrentMatch(c *fiber.Ctx) error {
	userID, typ := actionContext(c)
	st, err := s.ForfeitCurrentMatch(userID, typ)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"state": st})
}

// HandleUseConditionPotion consumes a potion for a condition boost.
func (s *TournamentService) HandleUseConditionPotion(c *fiber.Ctx) error {
	userID, typ := actionContext(c)
	var req struct {
		Tier string `json:"tier"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	st, err := s.UseConditionPotion(userID, typ, req.Tier)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"state": st})
}

// HandleClaimReward grants the final rank reward once.
func (s *TournamentService) HandleClaimReward(c *fiber.Ctx) error {
	userID, typ := actionContext(c)
	summary, err := s.ClaimReward(userID, typ)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"reward": summary})
}

// HandleClearSessions clears one type's slot (?type=) or all of them.
func (s *TournamentService) HandleClearSessions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	if typ := c.Query("type"); typ != "" {
		if err := s.ClearSession(userID, models.TournamentType(typ)); err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{"message": "session cleared"})
	}
	if err := s.ClearAllSessions(userID); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "all sessions cleared"})
}

// HandleGetState reads the current state, cache-first.
func (s *TournamentService) HandleGetState(c *fiber.Ctx) error {
	userID, typ := actionContext(c)
	st, err := s.SessionState(userID, typ)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"state": st})
}

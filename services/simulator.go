package services

import (
	"fmt"
	"log"
	"math"
	"math/rand"

	"board-arena-system/models"
)

// SimOutcome is one resolved match: winner side (0 or 1), raw scores,
// playback commentary, and elapsed seconds.
type SimOutcome struct {
	Winner      int
	Score       [2]int
	Commentary  []models.CommentaryEvent
	TimeElapsed int
}

// ClientResult is the payload a client submits for a completed match.
type ClientResult struct {
	TimeElapsed  int                      `json:"time_elapsed"`
	Player1Score int                      `json:"player1_score"`
	Player2Score int                      `json:"player2_score"`
	Commentary   []models.CommentaryEvent `json:"commentary"`
	WinnerID     string                   `json:"winner_id"`
}

// scoreRatioTolerance is how far the client's score-differential ratio may
// drift from the server re-simulation before the client result is discarded.
const scoreRatioTolerance = 0.20

var commentaryLines = []string{
	"takes the corner with a crisp approach",
	"presses the attack along the side",
	"finds a clever tesuji in the center",
	"defends the cut and holds the group",
	"misreads the ladder and gives up two stones",
	"seals the territory with a calm knight's move",
	"launches an invasion deep in enemy territory",
	"connects under and lives in the corner",
}

// Simulate runs the authoritative match between two participants. It is
// fully deterministic: same seed plus same working stats always produces the
// same outcome, which the verification path relies on. The working stats are
// mutated (stamina drain), so callers reset them from originalStats first.
func Simulate(seed int64, p1, p2 *models.Participant) SimOutcome {
	rng := rand.New(rand.NewSource(seed))

	power := [2]float64{matchPower(p1), matchPower(p2)}
	turns := 24 + rng.Intn(16)
	var score [2]int
	commentary := make([]models.CommentaryEvent, 0, turns/3)
	actors := [2]*models.Participant{p1, p2}

	for turn := 1; turn <= turns; turn++ {
		side := turn % 2
		gain := rng.Intn(int(power[side])+1) / 4
		score[side] += gain
		if turn%3 == 0 {
			actor := actors[side]
			commentary = append(commentary, models.CommentaryEvent{
				Turn:    turn,
				ActorID: actor.ID,
				Text:    fmt.Sprintf("%s %s", actor.Name, commentaryLines[rng.Intn(len(commentaryLines))]),
				P1Score: score[0],
				P2Score: score[1],
			})
		}
	}

	// A long game tires both players; the drain is what the pre-match stat
	// reset undoes.
	p1.Stats.Stamina -= turns / 8
	p2.Stats.Stamina -= turns / 8

	winner := 0
	if score[1] > score[0] {
		winner = 1
	} else if score[0] == score[1] {
		if p2.Stats.Concentration > p1.Stats.Concentration {
			winner = 1
		}
		score[winner]++
	}
	return SimOutcome{
		Winner:      winner,
		Score:       score,
		Commentary:  commentary,
		TimeElapsed: 90 + rng.Intn(210),
	}
}

// matchPower folds the six dimensions and the rolled condition into a single
// scoring rate for the turn loop.
func matchPower(p *models.Participant) float64 {
	s := p.Stats
	base := float64(s.Attack)*1.2 + float64(s.Accuracy)*1.1 + float64(s.Concentration) +
		float64(s.Defense)*0.8 + float64(s.Evasion)*0.7 + float64(s.Stamina)*0.6
	cond := models.ConditionMax
	if p.Condition != nil {
		cond = *p.Condition
	}
	base *= float64(cond) / 100
	if base < 4 {
		base = 4
	}
	return base
}

// ResolveResult applies the verify-or-trust policy. With a seed present the
// match is re-simulated server-side and the client result is discarded when
// the winners disagree or the score-differential ratios drift past the
// tolerance; without a seed the client result is trusted unconditionally
// (legacy unseeded flow, kept on purpose). A WinnerID naming neither
// combatant is a malformed result, never a default to player 1.
func ResolveResult(seed *int64, p1, p2 *models.Participant, client ClientResult) (SimOutcome, error) {
	clientOutcome := SimOutcome{
		Winner:      0,
		Score:       [2]int{client.Player1Score, client.Player2Score},
		Commentary:  client.Commentary,
		TimeElapsed: client.TimeElapsed,
	}
	switch client.WinnerID {
	case p1.ID:
	case p2.ID:
		clientOutcome.Winner = 1
	default:
		return SimOutcome{}, ErrMalformedResult
	}

	if seed == nil {
		return clientOutcome, nil
	}

	server := Simulate(*seed, p1, p2)
	if clientOutcome.Winner != server.Winner {
		log.Printf("[SIM] winner mismatch for %s vs %s: client=%d server=%d, using server result",
			p1.ID, p2.ID, clientOutcome.Winner, server.Winner)
		return server, nil
	}
	if math.Abs(scoreRatio(clientOutcome.Score)-scoreRatio(server.Score)) > scoreRatioTolerance {
		log.Printf("[SIM] score ratio divergence for %s vs %s: client=%v server=%v, using server result",
			p1.ID, p2.ID, clientOutcome.Score, server.Score)
		return server, nil
	}
	return clientOutcome, nil
}

// scoreRatio is the normalized score differential |a-b|/(a+b).
func scoreRatio(score [2]int) float64 {
	total := score[0] + score[1]
	if total <= 0 {
		return 0
	}
	return math.Abs(float64(score[0]-score[1])) / float64(total)
}

// normalizeCondition validates a participant's condition before a match and
// defensively re-rolls anything unset or out of range rather than using it
// raw.
func normalizeCondition(p *models.Participant) {
	if p.ConditionValid() {
		return
	}
	if p.Condition != nil {
		log.Printf("[SIM] participant %s has out-of-range condition %d, re-rolling", p.ID, *p.Condition)
	}
	rollCondition(p)
}

// rollCondition assigns a fresh random condition in [ConditionMin, ConditionMax].
func rollCondition(p *models.Participant) {
	c := models.ConditionMin + rand.Intn(models.ConditionMax-models.ConditionMin+1)
	p.Condition = &c
}

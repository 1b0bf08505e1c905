package services

import (
	"sort"

	"board-arena-system/models"
)

// FinalRanking orders participant indexes by wins desc, losses asc, win-rate
// desc, with the original index as a stable last resort. Both the automatic
// completion-score step and the explicit reward claim rank through this one
// function, so the two call sites can never drift apart.
func FinalRanking(players []models.Participant) []int {
	order := make([]int, len(players))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := &players[order[a]], &players[order[b]]
		if pa.Wins != pb.Wins {
			return pa.Wins > pb.Wins
		}
		if pa.Losses != pb.Losses {
			return pa.Losses < pb.Losses
		}
		if pa.WinRate() != pb.WinRate() {
			return pa.WinRate() > pb.WinRate()
		}
		return order[a] < order[b]
	})
	return order
}

// RankOf returns the 1-based final rank of one participant index.
func RankOf(players []models.Participant, idx int) int {
	for pos, pi := range FinalRanking(players) {
		if pi == idx {
			return pos + 1
		}
	}
	return len(players)
}

// ScoreForRank looks up the type-and-rank score delta; ranks past the table
// end earn the last entry.
func ScoreForRank(typ models.TournamentType, rank int) int {
	spec, ok := models.SpecFor(typ)
	if !ok || len(spec.ScoreTable) == 0 {
		return 0
	}
	if rank < 1 {
		rank = 1
	}
	if rank > len(spec.ScoreTable) {
		rank = len(spec.ScoreTable)
	}
	return spec.ScoreTable[rank-1]
}

// RewardForRank looks up the claimable reward with the same fallback rule.
func RewardForRank(typ models.TournamentType, rank int) models.RewardEntry {
	spec, ok := models.SpecFor(typ)
	if !ok || len(spec.Rewards) == 0 {
		return models.RewardEntry{}
	}
	if rank < 1 {
		rank = 1
	}
	if rank > len(spec.Rewards) {
		rank = len(spec.Rewards)
	}
	return spec.Rewards[rank-1]
}

package balance

import (
	"math/rand"

	"tapwar/internal/state"
)

// Assign picks a team for a brand-new player: the smaller team, or a coin
// flip when both sides are even. Returning players never reach this path;
// their stored team always wins.
func Assign(countA, countB int) state.Team {
	switch {
	case countA < countB:
		return state.TeamA
	case countB < countA:
		return state.TeamB
	default:
		if rand.Intn(2) == 0 {
			return state.TeamA
		}
		return state.TeamB
	}
}

// Counts tallies active players per team.
func Counts(players []*state.Player) (countA, countB int) {
	for _, p := range players {
		switch p.Team {
		case state.TeamA:
			countA++
		case state.TeamB:
			countB++
		}
	}
	return countA, countB
}

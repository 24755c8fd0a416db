package balance

import (
	"testing"

	"tapwar/internal/state"
)

func TestAssign_MinorityTeam(t *testing.T) {
	if got := Assign(3, 5); got != state.TeamA {
		t.Errorf("Assign(3, 5) = %v, want TeamA", got)
	}
	if got := Assign(7, 2); got != state.TeamB {
		t.Errorf("Assign(7, 2) = %v, want TeamB", got)
	}
	if got := Assign(0, 1); got != state.TeamA {
		t.Errorf("Assign(0, 1) = %v, want TeamA", got)
	}
}

func TestAssign_TieIsRoughlyEven(t *testing.T) {
	const trials = 10000
	countA := 0
	for i := 0; i < trials; i++ {
		if Assign(4, 4) == state.TeamA {
			countA++
		}
	}
	// Binomial(10000, 0.5) lands within ±500 of the mean essentially always.
	if countA < trials/2-500 || countA > trials/2+500 {
		t.Errorf("tie assignment gave TeamA %d/%d times, want roughly half", countA, trials)
	}
}

func TestCounts(t *testing.T) {
	players := []*state.Player{
		{ID: "1", Team: state.TeamA},
		{ID: "2", Team: state.TeamB},
		{ID: "3", Team: state.TeamA},
	}
	a, b := Counts(players)
	if a != 2 || b != 1 {
		t.Errorf("Counts = (%d, %d), want (2, 1)", a, b)
	}

	a, b = Counts(nil)
	if a != 0 || b != 0 {
		t.Errorf("Counts(nil) = (%d, %d), want (0, 0)", a, b)
	}
}

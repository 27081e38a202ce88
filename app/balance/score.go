package balance

import "github.com/HomerJax/SKV-Strich-App/app/roster"

// Objective weights. Strength balance dominates the spread of strong
// players, which dominates age and role balance, which dominate headcount.
const (
	WeightStrength = 10
	WeightStrong   = 6
	WeightAge      = 2
	WeightPosition = 2
	WeightSize     = 1
)

// Score holds the absolute differences between two teams along every
// balance axis, and their weighted sum. Lower is better.
type Score struct {
	Strength int // summed strength
	Strong   int // field players with strength >= 4
	Age      int // summed age lean
	Position int // summed role lean
	Size     int // headcount
	Total    int
}

// Evaluate scores an existing two-team split. It does not modify the teams,
// so it can be used on locked lineups as well as on balancer candidates.
func Evaluate(teamA, teamB []roster.Player) Score {
	a, b := tally(teamA), tally(teamB)
	sc := Score{
		Strength: abs(a.strength - b.strength),
		Strong:   abs(a.strong - b.strong),
		Age:      abs(a.age - b.age),
		Position: abs(a.position - b.position),
		Size:     abs(len(teamA) - len(teamB)),
	}
	sc.Total = sc.Strength*WeightStrength +
		sc.Strong*WeightStrong +
		sc.Age*WeightAge +
		sc.Position*WeightPosition +
		sc.Size*WeightSize
	return sc
}

type sums struct {
	strength, strong, age, position int
}

func tally(team []roster.Player) sums {
	var s sums
	for _, pl := range team {
		s.strength += pl.Strength
		s.age += pl.Age.Score()
		s.position += pl.Position.Score()
		if pl.Strong() {
			s.strong++
		}
	}
	return s
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

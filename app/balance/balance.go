// Package balance splits the players present at a session into two teams
// that are as even as possible in strength, age and roles.
//
// The search is a randomized greedy: goalkeepers are spread first, then
// field players are dealt one by one to the weaker side, either in
// descending strength order or in a shuffled order. Many such trials are
// scored with Evaluate and the best one is kept, so repeated calls can
// produce different, similarly scored teams.
package balance

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/HomerJax/SKV-Strich-App/app/roster"
)

// DefaultTrials is the number of candidates tried when Options.Trials is unset.
const DefaultTrials = 1200

var (
	// ErrInsufficientPlayers is returned when fewer than two players are given.
	ErrInsufficientPlayers = errors.New("at least two players are required")
	// ErrNoValidPartition is returned when no candidate satisfied the size rule.
	ErrNoValidPartition = errors.New("no split satisfies the team size rule")
)

// SizeRule restricts the team sizes a partition may have.
type SizeRule int

// Size rules. SizeEven is the zero value and the default.
const (
	SizeEven   SizeRule = iota // sizes differ by at most one
	SizeFree                   // any sizes, headcount only weighs into the score
	SizeStrict                 // team A gets ceil(n/2), team B floor(n/2)
)

// ParseSizeRule parses the name of a size rule, empty means SizeEven.
func ParseSizeRule(s string) (SizeRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "even":
		return SizeEven, nil
	case "free":
		return SizeFree, nil
	case "strict":
		return SizeStrict, nil
	default:
		return SizeEven, fmt.Errorf("unknown size rule %q", s)
	}
}

// String returns the name of the rule.
func (r SizeRule) String() string {
	switch r {
	case SizeFree:
		return "free"
	case SizeStrict:
		return "strict"
	default:
		return "even"
	}
}

// capacity returns the maximum sizes of team A and B for n players.
func (r SizeRule) capacity(n int) (capA, capB int) {
	switch r {
	case SizeFree:
		return n, n
	case SizeStrict:
		return (n + 1) / 2, n / 2
	default:
		return (n + 1) / 2, (n + 1) / 2
	}
}

// valid checks the final sizes of a candidate against the rule.
func (r SizeRule) valid(a, b int) bool {
	switch r {
	case SizeFree:
		return true
	case SizeStrict:
		n := a + b
		return a == (n+1)/2 && b == n/2
	default:
		return abs(a-b) <= 1
	}
}

// Options tune a single Balance call.
type Options struct {
	Rule   SizeRule
	Trials int        // DefaultTrials if not positive
	Rand   *rand.Rand // freshly seeded if nil

	// Observe, if set, is called after every trial once a valid candidate
	// has been found, with the best score so far.
	Observe func(trial int, best Score)
}

// Partition is a split of players into two teams.
type Partition struct {
	A, B  []roster.Player
	Score Score
}

// Assignment returns the side of every player in the partition.
func (p Partition) Assignment() roster.Assignment {
	res := make(roster.Assignment, len(p.A)+len(p.B))
	for _, pl := range p.A {
		res[pl.ID] = roster.SideA
	}
	for _, pl := range p.B {
		res[pl.ID] = roster.SideB
	}
	return res
}

// Balance splits the players into two teams. Players are expected to be
// present and active already, Balance does not filter them.
func Balance(players []roster.Player, opts Options) (Partition, error) {
	if len(players) < 2 {
		return Partition{}, ErrInsufficientPlayers
	}

	trials := opts.Trials
	if trials <= 0 {
		trials = DefaultTrials
	}

	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	var keepers, field []roster.Player
	for _, pl := range players {
		if pl.Goalkeeper() {
			keepers = append(keepers, pl)
			continue
		}
		field = append(field, pl)
	}

	// strongest first, so that a plain greedy pass spreads the top players
	sort.SliceStable(field, func(i, j int) bool {
		return field[i].Strength > field[j].Strength
	})

	capA, capB := opts.Rule.capacity(len(players))
	d := dealer{capA: capA, capB: capB}
	seedA, seedB, seeded := d.seed(keepers)

	var (
		best  Partition
		found bool
	)
	for trial := 0; trial < trials; trial++ {
		order := field
		if trial%2 == 1 {
			order = shuffled(field, rnd)
		}

		if seeded {
			a, b, ok := d.deal(seedA, seedB, order)
			if ok && opts.Rule.valid(len(a), len(b)) {
				if sc := Evaluate(a, b); !found || sc.Total < best.Score.Total {
					best, found = Partition{A: a, B: b, Score: sc}, true
				}
			}
		}

		if found && opts.Observe != nil {
			opts.Observe(trial, best.Score)
		}
	}

	if !found {
		return Partition{}, ErrNoValidPartition
	}
	return best, nil
}

// dealer places players onto two teams without exceeding their capacity.
type dealer struct {
	capA, capB int
}

// seed spreads the goalkeepers alternately, starting with team A. A keeper
// whose turn falls on a full team goes to the other one.
func (d dealer) seed(keepers []roster.Player) (a, b []roster.Player, ok bool) {
	for i, pl := range keepers {
		side := roster.SideA
		if i%2 == 1 {
			side = roster.SideB
		}
		if a, b, ok = d.put(a, b, side, pl); !ok {
			return nil, nil, false
		}
	}
	return a, b, true
}

// deal walks the ordered field players and gives each one to the team with
// the lower strength sum, ties going to the smaller team and then to A.
func (d dealer) deal(seedA, seedB, order []roster.Player) (a, b []roster.Player, ok bool) {
	a = append(make([]roster.Player, 0, d.capA), seedA...)
	b = append(make([]roster.Player, 0, d.capB), seedB...)
	sumA, sumB := strength(a), strength(b)

	for _, pl := range order {
		side := roster.SideB
		switch {
		case sumA < sumB:
			side = roster.SideA
		case sumA == sumB && len(a) <= len(b):
			side = roster.SideA
		}

		lenA := len(a)
		if a, b, ok = d.put(a, b, side, pl); !ok {
			return nil, nil, false
		}
		if len(a) > lenA {
			sumA += pl.Strength
		} else {
			sumB += pl.Strength
		}
	}
	return a, b, true
}

// put appends the player to the preferred side, or to the other side if the
// preferred one is full. It reports false if both sides are full.
func (d dealer) put(a, b []roster.Player, side roster.Side, pl roster.Player) ([]roster.Player, []roster.Player, bool) {
	if side == roster.SideA && len(a) >= d.capA || side == roster.SideB && len(b) >= d.capB {
		side = side.Other()
	}

	switch {
	case side == roster.SideA && len(a) < d.capA:
		return append(a, pl), b, true
	case side == roster.SideB && len(b) < d.capB:
		return a, append(b, pl), true
	default:
		return a, b, false
	}
}

func shuffled(players []roster.Player, rnd *rand.Rand) []roster.Player {
	res := make([]roster.Player, len(players))
	copy(res, players)
	rnd.Shuffle(len(res), func(i, j int) { res[i], res[j] = res[j], res[i] })
	return res
}

func strength(team []roster.Player) int {
	sum := 0
	for _, pl := range team {
		sum += pl.Strength
	}
	return sum
}

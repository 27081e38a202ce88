package roster

import (
	"fmt"
	"sort"
	"strings"
)

// Side is the team a present player is assigned to.
type Side int

// Sides. SideNone means the player is present but still in the pool.
const (
	SideNone Side = iota
	SideA
	SideB
)

// ParseSide parses a side as typed by a user or stored in the database.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pool", "none", "-":
		return SideNone, nil
	case "a", "1", "team1":
		return SideA, nil
	case "b", "2", "team2":
		return SideB, nil
	default:
		return SideNone, fmt.Errorf("unknown side %q", s)
	}
}

// String returns the stored name of the side, empty for the pool.
func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return ""
	}
}

// Other returns the opposite team, SideNone stays SideNone.
func (s Side) Other() Side {
	switch s {
	case SideA:
		return SideB
	case SideB:
		return SideA
	default:
		return SideNone
	}
}

// Assignment maps the id of every present player to its side.
// Absent players have no entry.
type Assignment map[string]Side

// Split divides the given players by their side in the assignment.
// Players without an entry are skipped.
func (a Assignment) Split(players []Player) (teamA, teamB, pool []Player) {
	for _, pl := range players {
		side, ok := a[pl.ID]
		if !ok {
			continue
		}
		switch side {
		case SideA:
			teamA = append(teamA, pl)
		case SideB:
			teamB = append(teamB, pl)
		default:
			pool = append(pool, pl)
		}
	}
	return teamA, teamB, pool
}

// Reset moves every present player back to the pool.
func (a Assignment) Reset() {
	for id := range a {
		a[id] = SideNone
	}
}

// SortForDisplay returns a copy of the players ordered by role rank and
// then alphabetically by name.
func SortForDisplay(players []Player) []Player {
	res := make([]Player, len(players))
	copy(res, players)
	sort.SliceStable(res, func(i, j int) bool {
		if ri, rj := res[i].Position.Rank(), res[j].Position.Rank(); ri != rj {
			return ri < rj
		}
		return strings.ToLower(res[i].Name) < strings.ToLower(res[j].Name)
	})
	return res
}

// TeamStats summarises the composition of one team.
type TeamStats struct {
	Players     int
	Goalkeepers int
	Defenders   int
	Attackers   int
	Seniors     int
	Over32      int
	Strength    int
	Strong      int
}

// Stats calculates the composition of the given team.
func Stats(team []Player) TeamStats {
	st := TeamStats{Players: len(team)}
	for _, pl := range team {
		switch pl.Position {
		case PositionGoalkeeper:
			st.Goalkeepers++
		case PositionDefense:
			st.Defenders++
		case PositionAttack:
			st.Attackers++
		}
		switch pl.Age {
		case AgeSenior:
			st.Seniors++
		case AgeOver32:
			st.Over32++
		}
		st.Strength += pl.Strength
		if pl.Strong() {
			st.Strong++
		}
	}
	return st
}

// AvgStrength returns the mean strength of the team, 0 for an empty one.
func (s TeamStats) AvgStrength() float64 {
	if s.Players == 0 {
		return 0
	}
	return float64(s.Strength) / float64(s.Players)
}

// IDs returns the ids of the players.
func IDs(players []Player) []string {
	ids := make([]string, len(players))
	for i, pl := range players {
		ids[i] = pl.ID
	}
	return ids
}

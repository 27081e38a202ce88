package roster

import (
	"fmt"
	"strings"
)

// Position is the preferred role of a player on the pitch.
type Position int

// Known positions. PositionUnset is the zero value.
const (
	PositionUnset Position = iota
	PositionGoalkeeper
	PositionDefense
	PositionAttack
)

// ParsePosition parses the stored name of a position or one of its
// short aliases. Empty input yields PositionUnset.
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return PositionUnset, nil
	case "goalkeeper", "gk", "keeper":
		return PositionGoalkeeper, nil
	case "defense", "def":
		return PositionDefense, nil
	case "attack", "att":
		return PositionAttack, nil
	default:
		return PositionUnset, fmt.Errorf("unknown position %q", s)
	}
}

// String returns the stored name of the position, empty for unset.
func (p Position) String() string {
	switch p {
	case PositionGoalkeeper:
		return "goalkeeper"
	case PositionDefense:
		return "defense"
	case PositionAttack:
		return "attack"
	default:
		return ""
	}
}

// Rank orders positions for display: keepers first, then defense, attack
// and players without a position.
func (p Position) Rank() int {
	switch p {
	case PositionGoalkeeper:
		return 0
	case PositionDefense:
		return 1
	case PositionAttack:
		return 2
	default:
		return 3
	}
}

// Score returns the role lean used by the balancer: attack +1, defense -1.
func (p Position) Score() int {
	switch p {
	case PositionAttack:
		return 1
	case PositionDefense:
		return -1
	default:
		return 0
	}
}

// AgeGroup is the age bracket a player is registered in.
type AgeGroup int

// Known age groups. AgeUnset is the zero value.
const (
	AgeUnset AgeGroup = iota
	AgeSenior
	AgeOver32
)

// ParseAgeGroup parses the stored name of an age group or an alias.
func ParseAgeGroup(s string) (AgeGroup, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return AgeUnset, nil
	case "senior", "ah":
		return AgeSenior, nil
	case "over32", "o32", "ü32":
		return AgeOver32, nil
	default:
		return AgeUnset, fmt.Errorf("unknown age group %q", s)
	}
}

// String returns the stored name of the age group, empty for unset.
func (a AgeGroup) String() string {
	switch a {
	case AgeSenior:
		return "senior"
	case AgeOver32:
		return "over32"
	default:
		return ""
	}
}

// Score returns the age lean used by the balancer: over32 +1, senior -1.
func (a AgeGroup) Score() int {
	switch a {
	case AgeOver32:
		return 1
	case AgeSenior:
		return -1
	default:
		return 0
	}
}

// Strength bounds and the value used when a rating is missing or invalid.
const (
	MinStrength     = 1
	MaxStrength     = 5
	DefaultStrength = 3
)

// StrongThreshold is the strength from which a field player counts as strong.
const StrongThreshold = 4

// Player is a club member with fully resolved attributes.
type Player struct {
	ID       string
	Name     string
	Age      AgeGroup
	Position Position
	Strength int // hidden rating, 1..5
	Active   bool
}

// Goalkeeper reports whether the player prefers to play in goal.
func (p Player) Goalkeeper() bool { return p.Position == PositionGoalkeeper }

// Strong reports whether the player is a standout field player.
func (p Player) Strong() bool {
	return p.Strength >= StrongThreshold && !p.Goalkeeper()
}

// Record is a player row as it is stored, with every optional column nullable.
type Record struct {
	ID       string  `db:"id"`
	Name     string  `db:"name"`
	Age      *string `db:"age_group"`
	Position *string `db:"position"`
	Strength *int    `db:"strength"`
	Active   *bool   `db:"active"`
}

// Resolve turns a stored record into a Player, applying all defaults:
// strength outside 1..5 becomes 3, missing activity means active and
// unknown position or age values are treated as unset.
func (r Record) Resolve() Player {
	pl := Player{
		ID:       r.ID,
		Name:     strings.TrimSpace(r.Name),
		Strength: ClampStrength(r.Strength),
		Active:   r.Active == nil || *r.Active,
	}
	if r.Position != nil {
		pl.Position, _ = ParsePosition(*r.Position)
	}
	if r.Age != nil {
		pl.Age, _ = ParseAgeGroup(*r.Age)
	}
	return pl
}

// ClampStrength resolves an optional strength rating.
func ClampStrength(s *int) int {
	if s == nil || *s < MinStrength || *s > MaxStrength {
		return DefaultStrength
	}
	return *s
}

// Record converts the player back into its stored shape.
func (p Player) Record() Record {
	strength, active := p.Strength, p.Active
	return Record{
		ID:       p.ID,
		Name:     p.Name,
		Age:      nullable(p.Age.String()),
		Position: nullable(p.Position.String()),
		Strength: &strength,
		Active:   &active,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

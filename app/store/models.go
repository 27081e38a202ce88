package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/HomerJax/SKV-Strich-App/app/roster"
)

// DateLayout is the format of calendar dates in the database and in commands.
const DateLayout = "2006-01-02"

// Season is a named date range that training sessions belong to.
type Season struct {
	ID    int64
	Name  string
	Start time.Time
	End   *time.Time // open ended if nil
}

// Contains reports whether the date falls into the season.
func (s Season) Contains(date time.Time) bool {
	if date.Before(s.Start) {
		return false
	}
	return s.End == nil || !date.After(*s.End)
}

// String returns the season in format "<name> (<from>..<to>)".
func (s Season) String() string {
	end := ""
	if s.End != nil {
		end = s.End.Format(DateLayout)
	}
	return fmt.Sprintf("%s (%s..%s)", s.Name, s.Start.Format(DateLayout), end)
}

// Session is a single training session.
type Session struct {
	ID       int64
	Date     time.Time
	Notes    string
	SeasonID *int64
}

// String returns the session in format "#<id> <date> <notes>".
func (s Session) String() string {
	return strings.TrimSpace(fmt.Sprintf("#%d %s %s", s.ID, s.Date.Format(DateLayout), s.Notes))
}

// Result is the outcome of the match played at a session, together with
// the teams as they were when the result was saved.
type Result struct {
	SessionID int64
	GoalsA    *int
	GoalsB    *int
	TeamA     []string // player ids
	TeamB     []string
}

// Winner returns the winning side, SideNone for a draw or an unknown score.
func (r Result) Winner() roster.Side {
	if r.GoalsA == nil || r.GoalsB == nil {
		return roster.SideNone
	}
	switch {
	case *r.GoalsA > *r.GoalsB:
		return roster.SideA
	case *r.GoalsB > *r.GoalsA:
		return roster.SideB
	default:
		return roster.SideNone
	}
}

// String returns the score in format "<a>:<b>", unknown goals as "?".
func (r Result) String() string {
	goals := func(g *int) string {
		if g == nil {
			return "?"
		}
		return fmt.Sprint(*g)
	}
	return goals(r.GoalsA) + ":" + goals(r.GoalsB)
}

// rows as they are stored

type seasonRow struct {
	ID    int64   `db:"id"`
	Name  string  `db:"name"`
	Start string  `db:"start_date"`
	End   *string `db:"end_date"`
}

func (r seasonRow) season() (Season, error) {
	start, err := time.Parse(DateLayout, r.Start)
	if err != nil {
		return Season{}, fmt.Errorf("parse start date: %w", err)
	}
	res := Season{ID: r.ID, Name: r.Name, Start: start}
	if r.End != nil {
		end, err := time.Parse(DateLayout, *r.End)
		if err != nil {
			return Season{}, fmt.Errorf("parse end date: %w", err)
		}
		res.End = &end
	}
	return res, nil
}

type sessionRow struct {
	ID       int64  `db:"id"`
	Date     string `db:"date"`
	Notes    string `db:"notes"`
	SeasonID *int64 `db:"season_id"`
}

func (r sessionRow) session() (Session, error) {
	date, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return Session{}, fmt.Errorf("parse session date: %w", err)
	}
	return Session{ID: r.ID, Date: date, Notes: r.Notes, SeasonID: r.SeasonID}, nil
}

type resultRow struct {
	SessionID int64  `db:"session_id"`
	GoalsA    *int   `db:"goals_a"`
	GoalsB    *int   `db:"goals_b"`
	TeamA     string `db:"team_a"`
	TeamB     string `db:"team_b"`
}

func (r resultRow) result() Result {
	return Result{
		SessionID: r.SessionID,
		GoalsA:    r.GoalsA,
		GoalsB:    r.GoalsB,
		TeamA:     splitIDs(r.TeamA),
		TeamB:     splitIDs(r.TeamB),
	}
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

type attendanceRow struct {
	PlayerID string `db:"player_id"`
	Side     string `db:"side"`
}

package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HomerJax/SKV-Strich-App/app/balance"
	"github.com/HomerJax/SKV-Strich-App/app/roster"
)

// RosterStore keeps the club members.
type RosterStore interface {
	ListPlayers(ctx context.Context, activeOnly bool) ([]roster.Player, error)
	GetPlayer(ctx context.Context, id string) (roster.Player, error)
	FindPlayer(ctx context.Context, name string) (roster.Player, error)
	CreatePlayer(ctx context.Context, pl roster.Player) error
	UpdatePlayer(ctx context.Context, players ...roster.Player) error
}

// SessionStore keeps seasons, sessions, attendance, teams and results.
type SessionStore interface {
	CreateSeason(ctx context.Context, season Season) (int64, error)
	ListSeasons(ctx context.Context) ([]Season, error)
	SeasonAt(ctx context.Context, date time.Time) (Season, error)

	CreateSession(ctx context.Context, sess Session) (int64, error)
	GetSession(ctx context.Context, id int64) (Session, error)
	ListSessions(ctx context.Context, seasonID *int64) ([]Session, error)

	Attendance(ctx context.Context, sessionID int64) (roster.Assignment, error)
	SetPresent(ctx context.Context, sessionID int64, playerID string, present bool) error
	SetSides(ctx context.Context, sessionID int64, asg roster.Assignment) error

	GetResult(ctx context.Context, sessionID int64) (Result, error)
	SaveResult(ctx context.Context, res Result) error
	DeleteResult(ctx context.Context, sessionID int64) error
}

var (
	_ RosterStore  = (*Store)(nil)
	_ SessionStore = (*Store)(nil)
)

var (
	// ErrInvalidInput is issued when a request carries a malformed value.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLocked is issued when a session is changed after its result has been saved.
	ErrLocked = errors.New("session is locked by a saved result")
	// ErrNotPresent is issued when a team change targets an absent player.
	ErrNotPresent = errors.New("player is not present at the session")
	// ErrInactive is issued when an inactive player is marked as present.
	ErrInactive = errors.New("player is inactive")
	// ErrIncomplete is issued when a result is saved while teams are not complete.
	ErrIncomplete = errors.New("teams are incomplete")
)

// Service wraps the stores with the rules of running a training session.
type Service struct {
	Roster   RosterStore
	Sessions SessionStore
}

// NewService makes a service backed by a single store.
func NewService(s *Store) *Service {
	return &Service{Roster: s, Sessions: s}
}

// PlayerPatch lists the fields of a player to change, nil fields are kept.
type PlayerPatch struct {
	Name     *string
	Position *roster.Position
	Age      *roster.AgeGroup
	Strength *int
	Active   *bool
}

// AddPlayer registers a new active player with the default strength.
func (s *Service) AddPlayer(ctx context.Context, name string, pos roster.Position, age roster.AgeGroup) (roster.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return roster.Player{}, fmt.Errorf("%w: empty name", ErrInvalidInput)
	}

	if _, err := s.Roster.FindPlayer(ctx, name); err == nil {
		return roster.Player{}, fmt.Errorf("%w: player %q already exists", ErrInvalidInput, name)
	} else if !errors.Is(err, ErrNotFound) {
		return roster.Player{}, fmt.Errorf("find player: %w", err)
	}

	pl := roster.Player{
		ID:       uuid.NewString(),
		Name:     name,
		Position: pos,
		Age:      age,
		Strength: roster.DefaultStrength,
		Active:   true,
	}
	if err := s.Roster.CreatePlayer(ctx, pl); err != nil {
		return roster.Player{}, fmt.Errorf("create player: %w", err)
	}
	return pl, nil
}

// UpdatePlayer applies the patch to the player with the given id.
func (s *Service) UpdatePlayer(ctx context.Context, id string, patch PlayerPatch) (roster.Player, error) {
	pl, err := s.Roster.GetPlayer(ctx, id)
	if err != nil {
		return roster.Player{}, fmt.Errorf("get player: %w", err)
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return roster.Player{}, fmt.Errorf("%w: empty name", ErrInvalidInput)
		}
		pl.Name = name
	}
	if patch.Strength != nil {
		if *patch.Strength < roster.MinStrength || *patch.Strength > roster.MaxStrength {
			return roster.Player{}, fmt.Errorf("%w: strength must be within %d..%d",
				ErrInvalidInput, roster.MinStrength, roster.MaxStrength)
		}
		pl.Strength = *patch.Strength
	}
	if patch.Position != nil {
		pl.Position = *patch.Position
	}
	if patch.Age != nil {
		pl.Age = *patch.Age
	}
	if patch.Active != nil {
		pl.Active = *patch.Active
	}

	if err := s.Roster.UpdatePlayer(ctx, pl); err != nil {
		return roster.Player{}, fmt.Errorf("update player: %w", err)
	}
	return pl, nil
}

// Player returns a player by name.
func (s *Service) Player(ctx context.Context, name string) (roster.Player, error) {
	pl, err := s.Roster.FindPlayer(ctx, name)
	if err != nil {
		return roster.Player{}, fmt.Errorf("find player %q: %w", name, err)
	}
	return pl, nil
}

// Players returns the roster, optionally only active players.
func (s *Service) Players(ctx context.Context, activeOnly bool) ([]roster.Player, error) {
	players, err := s.Roster.ListPlayers(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return players, nil
}

// CreateSeason adds a new season, end is optional.
func (s *Service) CreateSeason(ctx context.Context, name string, start time.Time, end *time.Time) (Season, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Season{}, fmt.Errorf("%w: empty season name", ErrInvalidInput)
	}
	if end != nil && end.Before(start) {
		return Season{}, fmt.Errorf("%w: season ends before it starts", ErrInvalidInput)
	}

	season := Season{Name: name, Start: start, End: end}
	id, err := s.Sessions.CreateSeason(ctx, season)
	if err != nil {
		return Season{}, fmt.Errorf("create season: %w", err)
	}
	season.ID = id
	return season, nil
}

// Seasons returns all seasons, the latest first.
func (s *Service) Seasons(ctx context.Context) ([]Season, error) {
	seasons, err := s.Sessions.ListSeasons(ctx)
	if err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	return seasons, nil
}

// CreateSession adds a training session on the given date and attaches it
// to the season covering that date, if there is one.
func (s *Service) CreateSession(ctx context.Context, date time.Time, notes string) (Session, error) {
	sess := Session{Date: date, Notes: strings.TrimSpace(notes)}

	season, err := s.Sessions.SeasonAt(ctx, date)
	switch {
	case err == nil:
		sess.SeasonID = &season.ID
	case !errors.Is(err, ErrNotFound):
		return Session{}, fmt.Errorf("find season: %w", err)
	}

	id, err := s.Sessions.CreateSession(ctx, sess)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	sess.ID = id
	return sess, nil
}

// ListSessions returns the sessions of the season, or all of them if seasonID is nil.
func (s *Service) ListSessions(ctx context.Context, seasonID *int64) ([]Session, error) {
	sessions, err := s.Sessions.ListSessions(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// TogglePresence marks an absent player as present and vice versa.
// It returns whether the player is present afterwards.
func (s *Service) TogglePresence(ctx context.Context, sessionID int64, playerID string) (bool, error) {
	res, err := s.TogglePresences(ctx, sessionID, playerID)
	if err != nil {
		return false, err
	}
	return res[playerID], nil
}

// TogglePresences toggles the presence of several players at once and
// returns whether each of them is present afterwards. Every player is
// checked before the first change, so either all toggles apply or none.
// A repeated id is toggled once.
func (s *Service) TogglePresences(ctx context.Context, sessionID int64, playerIDs ...string) (map[string]bool, error) {
	if err := s.checkUnlocked(ctx, sessionID); err != nil {
		return nil, err
	}

	asg, err := s.Sessions.Attendance(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}

	res := make(map[string]bool, len(playerIDs))
	for _, id := range playerIDs {
		if _, seen := res[id]; seen {
			continue
		}
		if _, present := asg[id]; present {
			res[id] = false
			continue
		}

		pl, err := s.Roster.GetPlayer(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get player: %w", err)
		}
		if !pl.Active {
			return nil, fmt.Errorf("%w: %s", ErrInactive, pl.Name)
		}
		res[id] = true
	}

	for id, present := range res {
		if err := s.Sessions.SetPresent(ctx, sessionID, id, present); err != nil {
			return nil, fmt.Errorf("set presence of %s: %w", id, err)
		}
	}
	return res, nil
}

// GenerateTeams splits the active present players into two balanced teams
// and stores the split, replacing any previous one. Calling it again rolls
// a new split.
func (s *Service) GenerateTeams(ctx context.Context, sessionID int64, opts balance.Options) (Lineup, error) {
	if err := s.checkUnlocked(ctx, sessionID); err != nil {
		return Lineup{}, err
	}

	present, asg, err := s.present(ctx, sessionID)
	if err != nil {
		return Lineup{}, err
	}

	var candidates []roster.Player
	for _, pl := range present {
		if pl.Active {
			candidates = append(candidates, pl)
		}
	}

	part, err := balance.Balance(candidates, opts)
	if err != nil {
		return Lineup{}, fmt.Errorf("balance teams: %w", err)
	}

	// players left out of the split go back to the pool
	asg.Reset()
	for id, side := range part.Assignment() {
		asg[id] = side
	}

	if err := s.Sessions.SetSides(ctx, sessionID, asg); err != nil {
		return Lineup{}, fmt.Errorf("store teams: %w", err)
	}

	log.Printf("[DEBUG] session %d balanced %d vs %d players, score %+v",
		sessionID, len(part.A), len(part.B), part.Score)

	return s.Lineup(ctx, sessionID)
}

// Move puts a present player into team A, team B or back to the pool.
func (s *Service) Move(ctx context.Context, sessionID int64, playerID string, side roster.Side) error {
	if err := s.checkUnlocked(ctx, sessionID); err != nil {
		return err
	}

	asg, err := s.Sessions.Attendance(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get attendance: %w", err)
	}
	if _, ok := asg[playerID]; !ok {
		return ErrNotPresent
	}

	if err := s.Sessions.SetSides(ctx, sessionID, roster.Assignment{playerID: side}); err != nil {
		return fmt.Errorf("move player: %w", err)
	}
	return nil
}

// Lineup is the current state of a session as shown to the club.
type Lineup struct {
	Session Session
	TeamA   []roster.Player // in display order
	TeamB   []roster.Player
	Pool    []roster.Player
	StatsA  roster.TeamStats
	StatsB  roster.TeamStats
	Score   balance.Score
	Result  *Result
}

// Locked reports whether the lineup is frozen by a saved result.
func (l Lineup) Locked() bool { return l.Result != nil }

// Present returns the number of present players.
func (l Lineup) Present() int { return len(l.TeamA) + len(l.TeamB) + len(l.Pool) }

// Lineup returns the teams and pool of the session. It never changes the
// session, so it works on locked sessions as well.
func (s *Service) Lineup(ctx context.Context, sessionID int64) (Lineup, error) {
	sess, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return Lineup{}, fmt.Errorf("get session: %w", err)
	}

	res, err := s.result(ctx, sessionID)
	if err != nil {
		return Lineup{}, err
	}

	present, asg, err := s.present(ctx, sessionID)
	if err != nil {
		return Lineup{}, err
	}

	teamA, teamB, pool := asg.Split(present)
	return Lineup{
		Session: sess,
		TeamA:   roster.SortForDisplay(teamA),
		TeamB:   roster.SortForDisplay(teamB),
		Pool:    roster.SortForDisplay(pool),
		StatsA:  roster.Stats(teamA),
		StatsB:  roster.Stats(teamB),
		Score:   balance.Evaluate(teamA, teamB),
		Result:  res,
	}, nil
}

// SaveResult records the score of the match. Every present player must be
// in a team and both teams must have players. The session is locked after.
func (s *Service) SaveResult(ctx context.Context, sessionID int64, goalsA, goalsB *int) (Result, error) {
	for _, g := range []*int{goalsA, goalsB} {
		if g != nil && *g < 0 {
			return Result{}, fmt.Errorf("%w: negative goals", ErrInvalidInput)
		}
	}

	if _, err := s.Sessions.GetSession(ctx, sessionID); err != nil {
		return Result{}, fmt.Errorf("get session: %w", err)
	}

	present, asg, err := s.present(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}

	teamA, teamB, pool := asg.Split(present)
	if len(teamA) == 0 || len(teamB) == 0 {
		return Result{}, fmt.Errorf("%w: both teams need at least one player", ErrIncomplete)
	}
	if len(pool) > 0 {
		names := make([]string, 0, len(pool))
		for _, pl := range roster.SortForDisplay(pool) {
			if !pl.Active {
				names = append(names, pl.Name+" (inactive)")
				continue
			}
			names = append(names, pl.Name)
		}
		return Result{}, fmt.Errorf("%w: not in a team: %s", ErrIncomplete, strings.Join(names, ", "))
	}

	res := Result{
		SessionID: sessionID,
		GoalsA:    goalsA,
		GoalsB:    goalsB,
		TeamA:     roster.IDs(teamA),
		TeamB:     roster.IDs(teamB),
	}
	if err := s.Sessions.SaveResult(ctx, res); err != nil {
		return Result{}, fmt.Errorf("save result: %w", err)
	}
	return res, nil
}

// DeleteResult removes the result of the session, unlocking it. All present
// players go back to the pool.
func (s *Service) DeleteResult(ctx context.Context, sessionID int64) error {
	if err := s.Sessions.DeleteResult(ctx, sessionID); err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	return nil
}

// present returns the players present at the session and their sides.
func (s *Service) present(ctx context.Context, sessionID int64) ([]roster.Player, roster.Assignment, error) {
	asg, err := s.Sessions.Attendance(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("get attendance: %w", err)
	}

	players, err := s.Roster.ListPlayers(ctx, false)
	if err != nil {
		return nil, nil, fmt.Errorf("list players: %w", err)
	}

	var present []roster.Player
	for _, pl := range players {
		if _, ok := asg[pl.ID]; ok {
			present = append(present, pl)
		}
	}
	return present, asg, nil
}

// result returns the result of the session, nil if there is none yet.
func (s *Service) result(ctx context.Context, sessionID int64) (*Result, error) {
	res, err := s.Sessions.GetResult(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	return &res, nil
}

// checkUnlocked fails with ErrNotFound for an unknown session and with
// ErrLocked if the session already has a result.
func (s *Service) checkUnlocked(ctx context.Context, sessionID int64) error {
	if _, err := s.Sessions.GetSession(ctx, sessionID); err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	res, err := s.result(ctx, sessionID)
	if err != nil {
		return err
	}
	if res != nil {
		return ErrLocked
	}
	return nil
}

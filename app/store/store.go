package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/HomerJax/SKV-Strich-App/app/roster"
)

// ErrNotFound indicates that the entity hasn't been found in the database.
var ErrNotFound = errors.New("not found")

// Store provides methods to store/load data.
type Store struct {
	db *sqlx.DB
}

// New prepares the database.
func New(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// sqlite serializes writers anyway, and an in-memory database lives
	// only as long as its single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	const schema = `
		CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			age_group TEXT,
			position TEXT,
			strength INTEGER,
			active BOOLEAN
		);
		CREATE UNIQUE INDEX IF NOT EXISTS players_name ON players (name COLLATE NOCASE);
		CREATE TABLE IF NOT EXISTS seasons (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT
		);
		CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			season_id INTEGER REFERENCES seasons (id)
		);
		CREATE TABLE IF NOT EXISTS session_players (
			session_id INTEGER NOT NULL REFERENCES sessions (id),
			player_id TEXT NOT NULL REFERENCES players (id),
			side TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (session_id, player_id)
		);
		CREATE TABLE IF NOT EXISTS results (
			session_id INTEGER PRIMARY KEY REFERENCES sessions (id),
			goals_a INTEGER,
			goals_b INTEGER,
			team_a TEXT NOT NULL DEFAULT '',
			team_b TEXT NOT NULL DEFAULT ''
		);
	`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Players

// ListPlayers returns all players ordered by name, optionally only the active ones.
func (s *Store) ListPlayers(ctx context.Context, activeOnly bool) ([]roster.Player, error) {
	query := `SELECT id, name, age_group, position, strength, active FROM players`
	if activeOnly {
		query += ` WHERE active IS NULL OR active`
	}
	query += ` ORDER BY name COLLATE NOCASE`

	var recs []roster.Record
	if err := s.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}

	players := make([]roster.Player, len(recs))
	for i, rec := range recs {
		players[i] = rec.Resolve()
	}
	return players, nil
}

// GetPlayer returns a player by the given id.
func (s *Store) GetPlayer(ctx context.Context, id string) (roster.Player, error) {
	return s.getPlayer(ctx, `SELECT id, name, age_group, position, strength, active FROM players WHERE id = ?`, id)
}

// FindPlayer returns a player by the given name, case-insensitive.
func (s *Store) FindPlayer(ctx context.Context, name string) (roster.Player, error) {
	return s.getPlayer(ctx, `SELECT id, name, age_group, position, strength, active
		FROM players WHERE name = ? COLLATE NOCASE`, strings.TrimSpace(name))
}

func (s *Store) getPlayer(ctx context.Context, query string, arg any) (roster.Player, error) {
	var rec roster.Record
	if err := s.db.GetContext(ctx, &rec, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return roster.Player{}, ErrNotFound
		}
		return roster.Player{}, fmt.Errorf("get player: %w", err)
	}
	return rec.Resolve(), nil
}

// CreatePlayer inserts a new player into the storage.
func (s *Store) CreatePlayer(ctx context.Context, pl roster.Player) error {
	const query = `INSERT INTO players (id, name, age_group, position, strength, active)
		VALUES (:id, :name, :age_group, :position, :strength, :active)`

	if _, err := s.db.NamedExecContext(ctx, query, pl.Record()); err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

// UpdatePlayer updates a bunch of players in the storage, only mutable fields are updated.
func (s *Store) UpdatePlayer(ctx context.Context, players ...roster.Player) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `UPDATE players SET
			name = :name,
			age_group = :age_group,
			position = :position,
			strength = :strength,
			active = :active
		WHERE id = :id`

	for _, pl := range players {
		res, err := tx.NamedExecContext(ctx, query, pl.Record())
		if err != nil {
			return fmt.Errorf("update player: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("update player %s: %w", pl.ID, ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Seasons

// CreateSeason inserts a new season and returns its id.
func (s *Store) CreateSeason(ctx context.Context, season Season) (int64, error) {
	var end *string
	if season.End != nil {
		e := season.End.Format(DateLayout)
		end = &e
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO seasons (name, start_date, end_date) VALUES (?, ?, ?)`,
		season.Name, season.Start.Format(DateLayout), end)
	if err != nil {
		return 0, fmt.Errorf("insert season: %w", err)
	}
	return res.LastInsertId()
}

// ListSeasons returns all seasons, the latest first.
func (s *Store) ListSeasons(ctx context.Context) ([]Season, error) {
	var rows []seasonRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, start_date, end_date
		FROM seasons ORDER BY start_date DESC`); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}

	res := make([]Season, 0, len(rows))
	for _, r := range rows {
		season, err := r.season()
		if err != nil {
			return nil, err
		}
		res = append(res, season)
	}
	return res, nil
}

// SeasonAt returns the season containing the date. When ranges overlap the
// one that started last wins.
func (s *Store) SeasonAt(ctx context.Context, date time.Time) (Season, error) {
	d := date.Format(DateLayout)

	var r seasonRow
	err := s.db.GetContext(ctx, &r, `SELECT id, name, start_date, end_date FROM seasons
		WHERE start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		ORDER BY start_date DESC LIMIT 1`, d, d)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Season{}, ErrNotFound
		}
		return Season{}, fmt.Errorf("get season: %w", err)
	}
	return r.season()
}

// Sessions

// CreateSession inserts a new training session and returns its id.
func (s *Store) CreateSession(ctx context.Context, sess Session) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO sessions (date, notes, season_id) VALUES (?, ?, ?)`,
		sess.Date.Format(DateLayout), sess.Notes, sess.SeasonID)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return res.LastInsertId()
}

// GetSession returns a session by the given id.
func (s *Store) GetSession(ctx context.Context, id int64) (Session, error) {
	var r sessionRow
	if err := s.db.GetContext(ctx, &r, `SELECT id, date, notes, season_id FROM sessions WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return r.session()
}

// ListSessions returns the sessions of a season, or all sessions if
// seasonID is nil, the latest first.
func (s *Store) ListSessions(ctx context.Context, seasonID *int64) ([]Session, error) {
	query := `SELECT id, date, notes, season_id FROM sessions`
	var args []any
	if seasonID != nil {
		query += ` WHERE season_id = ?`
		args = append(args, *seasonID)
	}
	query += ` ORDER BY date DESC, id DESC`

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}

	res := make([]Session, 0, len(rows))
	for _, r := range rows {
		sess, err := r.session()
		if err != nil {
			return nil, err
		}
		res = append(res, sess)
	}
	return res, nil
}

// Attendance returns the present players of the session with their sides.
func (s *Store) Attendance(ctx context.Context, sessionID int64) (roster.Assignment, error) {
	var rows []attendanceRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT player_id, side FROM session_players
		WHERE session_id = ?`, sessionID); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}

	res := make(roster.Assignment, len(rows))
	for _, r := range rows {
		side, err := roster.ParseSide(r.Side)
		if err != nil {
			return nil, fmt.Errorf("player %s: %w", r.PlayerID, err)
		}
		res[r.PlayerID] = side
	}
	return res, nil
}

// SetPresent marks the player as present or absent at the session. A player
// becoming present starts in the pool, a player leaving loses its side.
func (s *Store) SetPresent(ctx context.Context, sessionID int64, playerID string, present bool) error {
	query := `DELETE FROM session_players WHERE session_id = ? AND player_id = ?`
	if present {
		query = `INSERT OR IGNORE INTO session_players (session_id, player_id) VALUES (?, ?)`
	}

	if _, err := s.db.ExecContext(ctx, query, sessionID, playerID); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

// SetSides updates the sides of present players. Ids of absent players are ignored.
func (s *Store) SetSides(ctx context.Context, sessionID int64, asg roster.Assignment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for playerID, side := range asg {
		if _, err := tx.ExecContext(ctx, `UPDATE session_players SET side = ?
			WHERE session_id = ? AND player_id = ?`, side.String(), sessionID, playerID); err != nil {
			return fmt.Errorf("update side: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Results

// GetResult returns the result of the session.
func (s *Store) GetResult(ctx context.Context, sessionID int64) (Result, error) {
	var r resultRow
	if err := s.db.GetContext(ctx, &r, `SELECT session_id, goals_a, goals_b, team_a, team_b
		FROM results WHERE session_id = ?`, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrNotFound
		}
		return Result{}, fmt.Errorf("get result: %w", err)
	}
	return r.result(), nil
}

// SaveResult creates or replaces the result of the session.
func (s *Store) SaveResult(ctx context.Context, res Result) error {
	const query = `INSERT INTO results (session_id, goals_a, goals_b, team_a, team_b)
		VALUES (:session_id, :goals_a, :goals_b, :team_a, :team_b)
		ON CONFLICT (session_id) DO UPDATE SET
			goals_a = excluded.goals_a,
			goals_b = excluded.goals_b,
			team_a = excluded.team_a,
			team_b = excluded.team_b`

	row := resultRow{
		SessionID: res.SessionID,
		GoalsA:    res.GoalsA,
		GoalsB:    res.GoalsB,
		TeamA:     strings.Join(res.TeamA, ","),
		TeamB:     strings.Join(res.TeamB, ","),
	}
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// DeleteResult removes the result of the session and moves every present
// player back to the pool.
func (s *Store) DeleteResult(ctx context.Context, sessionID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM results WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `UPDATE session_players SET side = '' WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("reset sides: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/liveledger/internal/match"
)

const matchColumns = `id, home_team_id, away_team_id, home_score, away_score, start_time, end_time,
	status, location, referee_id, admin_id, club_id, tournament_id, stats, notes,
	created_by, created_at, updated_at`

// GetMatch returns a match with its full ledger ordered by seq.
// Returns a NOT_FOUND error if the match does not exist.
func (s *Store) GetMatch(ctx context.Context, id string) (*match.LiveMatch, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+matchColumns+" FROM matches WHERE id = ?"), id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get match: %w", match.NewNotFoundError(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}

	events, err := s.readEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	m.Events = events
	return &m, nil
}

// ListMatches returns matches narrowed by f, ordered by start time
// descending (ties broken by id so the order is stable).
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListMatches(ctx context.Context, f match.Filter) ([]match.LiveMatch, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.ClubID != "" {
		where = append(where, "club_id = ?")
		args = append(args, f.ClubID)
	}
	if f.TournamentID != "" {
		where = append(where, "tournament_id = ?")
		args = append(args, f.TournamentID)
	}

	query := "SELECT " + matchColumns + " FROM matches"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_time DESC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	var matches []match.LiveMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("list matches: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list matches: iterate: %w", err)
	}
	rows.Close()

	// Ledgers are read after the cursor is closed: SQLite runs on a single
	// connection.
	for i := range matches {
		events, err := s.readEvents(ctx, matches[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list matches: %w", err)
		}
		matches[i].Events = events
	}

	if matches == nil {
		matches = []match.LiveMatch{}
	}
	return matches, nil
}

// Events returns the ledger of a match ordered by seq.
// Returns a NOT_FOUND error if the match does not exist.
func (s *Store) Events(ctx context.Context, matchID string) ([]match.Event, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT 1 FROM matches WHERE id = ?"), matchID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("events: %w", match.NewNotFoundError(matchID))
	}
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	return s.readEvents(ctx, matchID)
}

// readEvents returns a match ledger ordered by seq. Empty slice, never nil.
func (s *Store) readEvents(ctx context.Context, matchID string) ([]match.Event, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, match_id, type, ts, minute, player_id, team_id, data, created_by, created_at
		FROM match_events
		WHERE match_id = ?
		ORDER BY seq ASC
	`), matchID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []match.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (match.LiveMatch, error) {
	var m match.LiveMatch
	var status, statsJSON string
	var startTime, createdAt, updatedAt int64
	var endTime sql.NullInt64

	err := row.Scan(
		&m.ID, &m.HomeTeamID, &m.AwayTeamID, &m.HomeScore, &m.AwayScore,
		&startTime, &endTime, &status, &m.Location, &m.RefereeID, &m.AdminID,
		&m.ClubID, &m.TournamentID, &statsJSON, &m.Notes,
		&m.CreatedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return match.LiveMatch{}, err
	}

	m.Status = match.Status(status)
	m.StartTime = fromNanos(startTime)
	m.EndTime = fromNullNanos(endTime)
	m.CreatedAt = fromNanos(createdAt)
	m.UpdatedAt = fromNanos(updatedAt)

	m.Stats, err = unmarshalStats(statsJSON)
	if err != nil {
		return match.LiveMatch{}, fmt.Errorf("match %s: %w", m.ID, err)
	}
	return m, nil
}

func scanEvent(rows *sql.Rows) (match.Event, error) {
	var ev match.Event
	var typ, dataJSON string
	var ts, createdAt int64

	err := rows.Scan(
		&ev.ID, &ev.MatchID, &typ, &ts, &ev.Minute, &ev.PlayerID, &ev.TeamID,
		&dataJSON, &ev.CreatedBy, &createdAt,
	)
	if err != nil {
		return match.Event{}, fmt.Errorf("scan event: %w", err)
	}

	ev.Type = match.EventType(typ)
	ev.Timestamp = fromNanos(ts)
	ev.CreatedAt = fromNanos(createdAt)
	ev.Data, err = unmarshalEventData(dataJSON)
	if err != nil {
		return match.Event{}, fmt.Errorf("event %s: %w", ev.ID, err)
	}
	return ev, nil
}

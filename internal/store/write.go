package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/liveledger/internal/match"
	"github.com/roach88/liveledger/internal/stats"
)

// CreateMatch inserts a match document and returns its id.
// A missing id is generated. Missing status defaults to scheduled.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: creating the same id
// twice (for example a replayed offline mutation) leaves the first row in
// place and returns the id without error. If the existing row is a
// different match (other teams, author or creation stamp) the create is
// rejected with a VALIDATION error instead.
//
// The ledger always starts empty and stats start at zero: any events or
// stats on the input are ignored.
func (s *Store) CreateMatch(ctx context.Context, m match.LiveMatch) (string, error) {
	if err := match.ValidateNew(&m); err != nil {
		return "", fmt.Errorf("create match: %w", err)
	}

	if m.ID == "" {
		m.ID = s.ids.Generate()
	}
	if m.Status == "" {
		m.Status = match.StatusScheduled
	}
	now := s.clock.Now()
	stamped := !m.CreatedAt.IsZero()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}

	statsJSON, err := marshalStats(stats.Summarize(match.Stats{}))
	if err != nil {
		return "", fmt.Errorf("create match: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO matches
		(id, home_team_id, away_team_id, home_score, away_score, start_time, end_time,
		 status, location, referee_id, admin_id, club_id, tournament_id, stats, notes,
		 created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`),
		m.ID, m.HomeTeamID, m.AwayTeamID, m.HomeScore, m.AwayScore,
		toNanos(m.StartTime), toNullNanos(m.EndTime),
		string(m.Status), m.Location, m.RefereeID, m.AdminID, m.ClubID, m.TournamentID,
		statsJSON, m.Notes, m.CreatedBy, toNanos(m.CreatedAt), toNanos(m.UpdatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("create match: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("create match: %w", err)
	}
	if n > 0 {
		s.publish(ctx, match.Change{Kind: match.ChangeUpserted, MatchID: m.ID})
		return m.ID, nil
	}

	existing, err := s.GetMatch(ctx, m.ID)
	if err != nil {
		return "", fmt.Errorf("create match: %w", err)
	}
	if !sameCreate(existing, &m, stamped) {
		slog.Warn("create rejected, id belongs to another match", "match_id", m.ID)
		return "", fmt.Errorf("create match: %w",
			match.NewValidationError("id", "match "+m.ID+" already exists"))
	}
	return m.ID, nil
}

// sameCreate reports whether existing was created from the same request as
// m. Only fields no later update can change are compared.
func sameCreate(existing, m *match.LiveMatch, stamped bool) bool {
	if existing.HomeTeamID != m.HomeTeamID || existing.AwayTeamID != m.AwayTeamID {
		return false
	}
	if m.CreatedBy != "" && existing.CreatedBy != m.CreatedBy {
		return false
	}
	return !stamped || existing.CreatedAt.Equal(m.CreatedAt)
}

// UpdateMatch applies a partial update. Only non-nil patch fields are
// written; updated_at is always written (stamped now if the patch has none).
// Returns a NOT_FOUND error if the match does not exist.
func (s *Store) UpdateMatch(ctx context.Context, id string, p match.Patch) error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("update match: %w", match.NewValidationError("status", "unknown status "+string(*p.Status)))
	}

	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if p.HomeScore != nil {
		add("home_score", *p.HomeScore)
	}
	if p.AwayScore != nil {
		add("away_score", *p.AwayScore)
	}
	if p.StartTime != nil {
		add("start_time", toNanos(*p.StartTime))
	}
	if p.EndTime != nil {
		add("end_time", toNullNanos(p.EndTime))
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.Location != nil {
		add("location", *p.Location)
	}
	if p.RefereeID != nil {
		add("referee_id", *p.RefereeID)
	}
	if p.AdminID != nil {
		add("admin_id", *p.AdminID)
	}
	if p.Notes != nil {
		add("notes", *p.Notes)
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.clock.Now()
	}
	add("updated_at", toNanos(updatedAt))

	args = append(args, id)
	query := "UPDATE matches SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update match: %w", match.NewNotFoundError(id))
	}

	s.publish(ctx, match.Change{Kind: match.ChangeUpserted, MatchID: id})
	return nil
}

// DeleteMatch removes a match and its ledger.
// Returns a NOT_FOUND error if the match does not exist.
func (s *Store) DeleteMatch(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete match: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM match_events WHERE match_id = ?"), id); err != nil {
		return fmt.Errorf("delete match: events: %w", err)
	}

	res, err := tx.ExecContext(ctx, s.rebind("DELETE FROM matches WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete match: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete match: %w", match.NewNotFoundError(id))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete match: commit: %w", err)
	}

	s.publish(ctx, match.Change{Kind: match.ChangeDeleted, MatchID: id})
	return nil
}

// AppendEvent atomically inserts an event into a match ledger and applies
// its stats delta.
//
// Returns:
//   - inserted: true if the event is new, false if an event with the same
//     id was already in the ledger (no delta applied, stats unchanged)
//   - error: NOT_FOUND if the match does not exist, VALIDATION if the event
//     is malformed or its team does not play in the match
//
// The seq of the new event is one more than the highest seq in the match.
func (s *Store) AppendEvent(ctx context.Context, ev match.Event) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("append event: begin tx: %w", err)
	}
	defer tx.Rollback()

	// Step 1: Load the owning match row (locked on Postgres)
	var m match.LiveMatch
	var statsJSON string
	err = tx.QueryRowContext(ctx, s.rebind(`
		SELECT id, home_team_id, away_team_id, stats FROM matches WHERE id = ?
	`+s.forUpdate()), ev.MatchID).Scan(&m.ID, &m.HomeTeamID, &m.AwayTeamID, &statsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("append event: %w", match.NewNotFoundError(ev.MatchID))
	}
	if err != nil {
		return false, fmt.Errorf("append event: load match: %w", err)
	}

	if err := match.ValidateEvent(&ev, &m); err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	if ev.ID == "" {
		ev.ID = s.ids.Generate()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.clock.Now()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = ev.CreatedAt
	}

	current, err := unmarshalStats(statsJSON)
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}

	dataJSON, err := marshalEventData(ev.Data)
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}

	// Step 2: Claim the event id (idempotent via unique primary key)
	var seq int64
	err = tx.QueryRowContext(ctx, s.rebind(`
		SELECT COALESCE(MAX(seq), 0) + 1 FROM match_events WHERE match_id = ?
	`), ev.MatchID).Scan(&seq)
	if err != nil {
		return false, fmt.Errorf("append event: next seq: %w", err)
	}

	res, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO match_events
		(id, match_id, seq, type, ts, minute, player_id, team_id, data, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`),
		ev.ID, ev.MatchID, seq, string(ev.Type), toNanos(ev.Timestamp), ev.Minute,
		ev.PlayerID, ev.TeamID, dataJSON, ev.CreatedBy, toNanos(ev.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("append event: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append event: rows affected: %w", err)
	}

	if n == 0 {
		// Already in the ledger - the delta was applied when it was first inserted
		slog.Debug("event already in ledger", "event_id", ev.ID, "match_id", ev.MatchID)
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("append event: commit (existing): %w", err)
		}
		return false, nil
	}

	// Step 3: Apply the stats delta in the same transaction
	newStatsJSON, err := marshalStats(stats.Apply(current, m.HomeTeamID, ev))
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	_, err = tx.ExecContext(ctx, s.rebind(`
		UPDATE matches SET stats = ?, updated_at = ? WHERE id = ?
	`), newStatsJSON, toNanos(s.clock.Now()), ev.MatchID)
	if err != nil {
		return false, fmt.Errorf("append event: update stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("append event: commit: %w", err)
	}

	s.publish(ctx, match.Change{Kind: match.ChangeEvent, MatchID: ev.MatchID, Event: &ev})
	return true, nil
}

// SetStats overwrites a match's stats. Used only by ledger repair after a
// replay found drift; never reachable from the live service.
func (s *Store) SetStats(ctx context.Context, id string, st match.Stats) error {
	statsJSON, err := marshalStats(st)
	if err != nil {
		return fmt.Errorf("set stats: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE matches SET stats = ? WHERE id = ?"), statsJSON, id)
	if err != nil {
		return fmt.Errorf("set stats: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set stats: %w", match.NewNotFoundError(id))
	}
	s.publish(ctx, match.Change{Kind: match.ChangeUpserted, MatchID: id})
	return nil
}

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/liveledger/internal/match"
)

var testEpoch = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

// fixedClock always returns the same instant.
type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{
		WithClock(fixedClock{testEpoch}),
		WithIDGenerator(match.NewFixedGenerator("id")),
	}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestMatch returns a scheduled match with minimal required fields.
func createTestMatch(id string) match.LiveMatch {
	return match.LiveMatch{
		ID:         id,
		HomeTeamID: "team-home",
		AwayTeamID: "team-away",
		StartTime:  testEpoch,
		Location:   "Pitch 3",
		CreatedBy:  "ref-1",
	}
}

// createTestEvent returns an event with minimal required fields.
func createTestEvent(id, matchID string, typ match.EventType, teamID string, minute int) match.Event {
	return match.Event{
		ID:        id,
		MatchID:   matchID,
		Type:      typ,
		Minute:    minute,
		TeamID:    teamID,
		CreatedBy: "ref-1",
	}
}

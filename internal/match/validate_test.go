package match

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNew(t *testing.T) {
	start := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)

	require.NoError(t, ValidateNew(&LiveMatch{HomeTeamID: "h", AwayTeamID: "a", StartTime: start}))
	require.NoError(t, ValidateNew(&LiveMatch{HomeTeamID: "h", AwayTeamID: "a", StartTime: start, Status: StatusScheduled}))

	tests := []struct {
		name string
		m    LiveMatch
	}{
		{"missing home", LiveMatch{AwayTeamID: "a", StartTime: start}},
		{"missing away", LiveMatch{HomeTeamID: "h", StartTime: start}},
		{"same teams", LiveMatch{HomeTeamID: "h", AwayTeamID: "h", StartTime: start}},
		{"missing start", LiveMatch{HomeTeamID: "h", AwayTeamID: "a"}},
		{"bad status", LiveMatch{HomeTeamID: "h", AwayTeamID: "a", StartTime: start, Status: "paused"}},
		{"already in progress", LiveMatch{HomeTeamID: "h", AwayTeamID: "a", StartTime: start, Status: StatusInProgress}},
		{"already completed", LiveMatch{HomeTeamID: "h", AwayTeamID: "a", StartTime: start, Status: StatusCompleted}},
		{"already cancelled", LiveMatch{HomeTeamID: "h", AwayTeamID: "a", StartTime: start, Status: StatusCancelled}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNew(&tt.m)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestValidateEvent(t *testing.T) {
	m := &LiveMatch{ID: "m1", HomeTeamID: "h", AwayTeamID: "a"}
	ok := Event{MatchID: "m1", Type: EventGoal, TeamID: "h", Minute: 23}
	require.NoError(t, ValidateEvent(&ok, m))
	require.NoError(t, ValidateEvent(&ok, nil), "unknown match skips the team check")

	bad := []Event{
		{Type: EventGoal, TeamID: "h"},
		{MatchID: "m1", Type: "header", TeamID: "h"},
		{MatchID: "m1", Type: EventGoal},
		{MatchID: "m1", Type: EventGoal, TeamID: "h", Minute: -1},
		{MatchID: "m1", Type: EventGoal, TeamID: "other"},
	}
	for i, ev := range bad {
		err := ValidateEvent(&ev, m)
		require.Error(t, err, "case %d", i)
		assert.True(t, IsValidation(err), "case %d", i)
	}
}

func TestNormalizeEventText(t *testing.T) {
	// "e" followed by a combining acute accent normalizes to the single rune é.
	d := EventData{Description: "  Cafe\u0301 corner  "}
	NormalizeEventText(&d)
	assert.Equal(t, "Caf\u00e9 corner", d.Description)
}

func TestErrorClassification_Wrapped(t *testing.T) {
	err := fmt.Errorf("append event: %w", NewConnectivityError(errors.New("dial tcp: refused")))

	assert.True(t, IsConnectivity(err))
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "dial tcp: refused")

	nf := fmt.Errorf("get: %w", NewNotFoundError("m9"))
	assert.True(t, IsNotFound(nf))
	assert.Contains(t, nf.Error(), "match=m9")

	assert.True(t, IsConnectivity(ErrOffline))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("ev")
	assert.Equal(t, "ev-1", g.Generate())
	assert.Equal(t, "ev-2", g.Generate())
}

package match

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ValidateNew checks the fields a match must carry before it is created.
// A new match is always scheduled; an empty status means scheduled.
func ValidateNew(m *LiveMatch) error {
	if strings.TrimSpace(m.HomeTeamID) == "" {
		return NewValidationError("homeTeamId", "required")
	}
	if strings.TrimSpace(m.AwayTeamID) == "" {
		return NewValidationError("awayTeamId", "required")
	}
	if m.HomeTeamID == m.AwayTeamID {
		return NewValidationError("awayTeamId", "must differ from homeTeamId")
	}
	if m.StartTime.IsZero() {
		return NewValidationError("startTime", "required")
	}
	if m.Status != "" && !m.Status.Valid() {
		return NewValidationError("status", "unknown status "+string(m.Status))
	}
	// Every other status is reached through a lifecycle transition.
	if m.Status != "" && m.Status != StatusScheduled {
		return NewValidationError("status", "a new match must be scheduled, got "+string(m.Status))
	}
	return nil
}

// ValidateEvent checks an event before it is appended. If m is non-nil the
// event's team must play in that match.
func ValidateEvent(ev *Event, m *LiveMatch) error {
	if ev.MatchID == "" {
		return NewValidationError("matchId", "required")
	}
	if !ev.Type.Valid() {
		return NewValidationError("type", "unknown event type "+string(ev.Type))
	}
	if ev.TeamID == "" {
		return NewValidationError("teamId", "required")
	}
	if ev.Minute < 0 {
		return NewValidationError("minute", "must not be negative")
	}
	if m != nil && m.TeamSide(ev.TeamID) == "" {
		return NewValidationError("teamId", "team "+ev.TeamID+" does not play in this match")
	}
	return nil
}

// NormalizeEventText puts free-form text into NFC so the same description
// typed on different devices compares equal.
func NormalizeEventText(d *EventData) {
	d.Description = norm.NFC.String(strings.TrimSpace(d.Description))
	d.CardReason = norm.NFC.String(strings.TrimSpace(d.CardReason))
	d.InjurySeverity = norm.NFC.String(strings.TrimSpace(d.InjurySeverity))
}

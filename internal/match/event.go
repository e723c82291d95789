package match

import "time"

// EventType identifies a match event.
type EventType string

const (
	EventGoal            EventType = "goal"
	EventAssist          EventType = "assist"
	EventYellowCard      EventType = "yellow_card"
	EventRedCard         EventType = "red_card"
	EventSubstitutionIn  EventType = "substitution_in"
	EventSubstitutionOut EventType = "substitution_out"
	EventInjury          EventType = "injury"
	EventPenaltyGoal     EventType = "penalty_goal"
	EventPenaltyMiss     EventType = "penalty_miss"
	EventOwnGoal         EventType = "own_goal"
	EventMatchStart      EventType = "match_start"
	EventMatchEnd        EventType = "match_end"
	EventHalftimeStart   EventType = "halftime_start"
	EventHalftimeEnd     EventType = "halftime_end"
	EventInjuryTimeStart EventType = "injury_time_start"
	EventInjuryTimeEnd   EventType = "injury_time_end"
)

var eventTypes = map[EventType]bool{
	EventGoal: true, EventAssist: true, EventYellowCard: true, EventRedCard: true,
	EventSubstitutionIn: true, EventSubstitutionOut: true, EventInjury: true,
	EventPenaltyGoal: true, EventPenaltyMiss: true, EventOwnGoal: true,
	EventMatchStart: true, EventMatchEnd: true, EventHalftimeStart: true,
	EventHalftimeEnd: true, EventInjuryTimeStart: true, EventInjuryTimeEnd: true,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return eventTypes[t]
}

// Milestone reports whether the event should trigger a device notification.
func (t EventType) Milestone() bool {
	return t == EventGoal || t == EventRedCard || t == EventPenaltyGoal
}

// GoalTypePenalty marks a goal scored from the spot.
const GoalTypePenalty = "penalty"

// Position is a point on the pitch, in percent of its length and width.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EventData is the typed payload of an event. Which fields are meaningful
// depends on the event type.
type EventData struct {
	GoalType            string    `json:"goalType,omitempty"`
	CardReason          string    `json:"cardReason,omitempty"`
	SubstitutedPlayerID string    `json:"substitutedPlayerId,omitempty"`
	InjurySeverity      string    `json:"injurySeverity,omitempty"`
	Description         string    `json:"description,omitempty"`
	FieldPosition       *Position `json:"fieldPosition,omitempty"`
}

// Event is one entry of a match ledger.
type Event struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"matchId"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Minute    int       `json:"minute"`
	PlayerID  string    `json:"playerId,omitempty"`
	TeamID    string    `json:"teamId"`
	Data      EventData `json:"data"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

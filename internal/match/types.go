package match

import "time"

// Status is the lifecycle state of a live match.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusHalftime   Status = "halftime"
	StatusCompleted  Status = "completed"
	StatusPostponed  Status = "postponed"
	StatusCancelled  Status = "cancelled"
)

// transitions lists the allowed next states for each status.
// completed and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress},
	StatusInProgress: {StatusHalftime, StatusCompleted, StatusPostponed, StatusCancelled},
	StatusHalftime:   {StatusInProgress, StatusCompleted, StatusPostponed, StatusCancelled},
	StatusPostponed:  {StatusScheduled},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusHalftime,
		StatusCompleted, StatusPostponed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether a match may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LiveMatch is the persisted match document.
type LiveMatch struct {
	ID           string     `json:"id"`
	HomeTeamID   string     `json:"homeTeamId"`
	AwayTeamID   string     `json:"awayTeamId"`
	HomeScore    int        `json:"homeScore"`
	AwayScore    int        `json:"awayScore"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Status       Status     `json:"status"`
	Location     string     `json:"location"`
	RefereeID    string     `json:"refereeId,omitempty"`
	AdminID      string     `json:"adminId,omitempty"`
	ClubID       string     `json:"clubId,omitempty"`
	TournamentID string     `json:"tournamentId,omitempty"`
	Events       []Event    `json:"events"`
	Stats        Stats      `json:"stats"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CreatedBy    string     `json:"createdBy"`
}

// TeamSide returns "home" or "away" for a team id, or "" if the team does
// not play in this match.
func (m *LiveMatch) TeamSide(teamID string) string {
	switch teamID {
	case m.HomeTeamID:
		return "home"
	case m.AwayTeamID:
		return "away"
	}
	return ""
}

// Clone returns a deep copy of the match.
func (m *LiveMatch) Clone() *LiveMatch {
	c := *m
	if m.EndTime != nil {
		t := *m.EndTime
		c.EndTime = &t
	}
	if m.Events != nil {
		c.Events = make([]Event, len(m.Events))
		copy(c.Events, m.Events)
	}
	return &c
}

// Patch is a partial update to a match. Nil fields are left unchanged.
// Stats and events are deliberately absent.
type Patch struct {
	HomeScore *int       `json:"homeScore,omitempty"`
	AwayScore *int       `json:"awayScore,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Status    *Status    `json:"status,omitempty"`
	Location  *string    `json:"location,omitempty"`
	RefereeID *string    `json:"refereeId,omitempty"`
	AdminID   *string    `json:"adminId,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ApplyTo writes the non-nil patch fields onto m.
func (p Patch) ApplyTo(m *LiveMatch) {
	if p.HomeScore != nil {
		m.HomeScore = *p.HomeScore
	}
	if p.AwayScore != nil {
		m.AwayScore = *p.AwayScore
	}
	if p.StartTime != nil {
		m.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		t := *p.EndTime
		m.EndTime = &t
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.Location != nil {
		m.Location = *p.Location
	}
	if p.RefereeID != nil {
		m.RefereeID = *p.RefereeID
	}
	if p.AdminID != nil {
		m.AdminID = *p.AdminID
	}
	if p.Notes != nil {
		m.Notes = *p.Notes
	}
	if !p.UpdatedAt.IsZero() {
		m.UpdatedAt = p.UpdatedAt
	}
}

// Filter narrows a match listing. Zero values mean "any".
type Filter struct {
	Status       Status
	ClubID       string
	TournamentID string
	Limit        int
}

// ChangeKind identifies what happened to a match in the store.
type ChangeKind string

const (
	ChangeUpserted ChangeKind = "upserted"
	ChangeEvent    ChangeKind = "event"
	ChangeDeleted  ChangeKind = "deleted"
)

// Change describes one committed store mutation. It is what subscribers
// and replicas receive.
type Change struct {
	Kind    ChangeKind `json:"kind"`
	MatchID string     `json:"matchId"`
	Event   *Event     `json:"event,omitempty"`
	// Origin identifies the store instance that committed the change.
	Origin string `json:"origin,omitempty"`
}

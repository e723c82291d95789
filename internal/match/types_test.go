package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusScheduled, StatusInProgress, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusInProgress, StatusHalftime, true},
		{StatusHalftime, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusHalftime, StatusCompleted, true},
		{StatusInProgress, StatusPostponed, true},
		{StatusHalftime, StatusCancelled, true},
		{StatusPostponed, StatusScheduled, true},
		{StatusCompleted, StatusInProgress, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusScheduled, StatusScheduled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPostponed.Terminal())
	assert.False(t, StatusHalftime.Terminal())
}

func TestEventType_Milestone(t *testing.T) {
	assert.True(t, EventGoal.Milestone())
	assert.True(t, EventRedCard.Milestone())
	assert.True(t, EventPenaltyGoal.Milestone())
	assert.False(t, EventYellowCard.Milestone())
	assert.False(t, EventOwnGoal.Milestone())
}

func TestLiveMatch_TeamSide(t *testing.T) {
	m := &LiveMatch{HomeTeamID: "h", AwayTeamID: "a"}
	assert.Equal(t, "home", m.TeamSide("h"))
	assert.Equal(t, "away", m.TeamSide("a"))
	assert.Equal(t, "", m.TeamSide("x"))
}

func TestLiveMatch_CloneIsDeep(t *testing.T) {
	end := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := &LiveMatch{ID: "m1", EndTime: &end, Events: []Event{{ID: "e1"}}}

	c := m.Clone()
	c.Events[0].ID = "changed"
	*c.EndTime = end.Add(time.Hour)

	assert.Equal(t, "e1", m.Events[0].ID)
	assert.Equal(t, end, *m.EndTime)
}

func TestPatch_ApplyTo(t *testing.T) {
	m := &LiveMatch{ID: "m1", HomeScore: 0, Location: "North Field", Status: StatusScheduled}
	score := 2
	status := StatusInProgress
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	Patch{HomeScore: &score, Status: &status, UpdatedAt: now}.ApplyTo(m)

	assert.Equal(t, 2, m.HomeScore)
	assert.Equal(t, StatusInProgress, m.Status)
	assert.Equal(t, "North Field", m.Location, "nil fields are left alone")
	assert.Equal(t, now, m.UpdatedAt)
}

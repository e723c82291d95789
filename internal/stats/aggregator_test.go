package stats

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liveledger/internal/match"
)

const (
	home = "team-home"
	away = "team-away"
)

func ev(id string, typ match.EventType, team string) match.Event {
	return match.Event{ID: id, MatchID: "m1", Type: typ, TeamID: team}
}

func TestApply_Goal(t *testing.T) {
	s := Apply(match.Stats{}, home, ev("e1", match.EventGoal, home))
	assert.Equal(t, 1, s.HomeTeam.Goals)
	assert.Equal(t, 0, s.HomeTeam.PenaltyGoals)
	assert.Equal(t, 0, s.AwayTeam.Goals)
}

func TestApply_PenaltyGoalType(t *testing.T) {
	e := ev("e1", match.EventGoal, away)
	e.Data.GoalType = match.GoalTypePenalty

	s := Apply(match.Stats{}, home, e)
	assert.Equal(t, 1, s.AwayTeam.Goals)
	assert.Equal(t, 1, s.AwayTeam.PenaltyGoals)
}

func TestApply_Cards_UpdateSummary(t *testing.T) {
	s := Apply(match.Stats{}, home, ev("e1", match.EventYellowCard, away))
	s = Apply(s, home, ev("e2", match.EventRedCard, home))

	assert.Equal(t, 1, s.AwayTeam.YellowCards)
	assert.Equal(t, 1, s.HomeTeam.RedCards)
	assert.Equal(t, match.Split{Home: 0, Away: 1}, s.Cards.Yellow)
	assert.Equal(t, match.Split{Home: 1, Away: 0}, s.Cards.Red)
}

func TestApply_Substitution_CountedOnce(t *testing.T) {
	s := Apply(match.Stats{}, home, ev("e1", match.EventSubstitutionIn, home))
	s = Apply(s, home, ev("e2", match.EventSubstitutionOut, home))
	assert.Equal(t, 1, s.HomeTeam.Substitutions)
}

func TestApply_UnknownTypeIsNoop(t *testing.T) {
	before := Fold(home, []match.Event{ev("e1", match.EventGoal, home)})
	for _, typ := range []match.EventType{
		match.EventMatchStart, match.EventHalftimeStart, match.EventPenaltyMiss,
		match.EventInjuryTimeStart, "something_new",
	} {
		assert.Equal(t, before, Apply(before, home, ev("x", typ, home)), "type %s", typ)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := match.Stats{}
	_ = Apply(in, home, ev("e1", match.EventGoal, home))
	assert.Equal(t, 0, in.HomeTeam.Goals)
}

func TestApply_Deterministic(t *testing.T) {
	base := Fold(home, []match.Event{ev("e1", match.EventAssist, away)})
	e := ev("e2", match.EventInjury, away)
	assert.Equal(t, Apply(base, home, e), Apply(base, home, e))
}

// Each per-team counter equals the count of ledger events of that type for
// that team.
func TestFold_MatchesEventCounts(t *testing.T) {
	events := []match.Event{
		ev("1", match.EventGoal, home),
		ev("2", match.EventAssist, home),
		ev("3", match.EventGoal, away),
		ev("4", match.EventYellowCard, away),
		ev("5", match.EventYellowCard, home),
		ev("6", match.EventGoal, home),
		ev("7", match.EventRedCard, away),
		ev("8", match.EventAssist, home),
		ev("9", match.EventMatchEnd, home),
	}

	s := Fold(home, events)

	count := func(typ match.EventType, team string) int {
		n := 0
		for _, e := range events {
			if e.Type == typ && e.TeamID == team {
				n++
			}
		}
		return n
	}

	assert.Equal(t, count(match.EventGoal, home), s.HomeTeam.Goals)
	assert.Equal(t, count(match.EventGoal, away), s.AwayTeam.Goals)
	assert.Equal(t, count(match.EventAssist, home), s.HomeTeam.Assists)
	assert.Equal(t, count(match.EventAssist, away), s.AwayTeam.Assists)
	assert.Equal(t, count(match.EventYellowCard, home), s.HomeTeam.YellowCards)
	assert.Equal(t, count(match.EventYellowCard, away), s.AwayTeam.YellowCards)
	assert.Equal(t, count(match.EventRedCard, away), s.AwayTeam.RedCards)
}

func TestFold_EqualsIncrementalApply(t *testing.T) {
	events := []match.Event{
		ev("1", match.EventGoal, home),
		ev("2", match.EventInjury, away),
		ev("3", match.EventSubstitutionIn, away),
	}

	inc := match.Stats{}
	for _, e := range events {
		inc = Apply(inc, home, e)
	}
	assert.True(t, Equal(inc, Fold(home, events)))
}

func TestFold_Golden(t *testing.T) {
	penalty := ev("4", match.EventGoal, away)
	penalty.Data.GoalType = match.GoalTypePenalty

	events := []match.Event{
		ev("1", match.EventMatchStart, home),
		ev("2", match.EventGoal, home),
		ev("3", match.EventAssist, home),
		penalty,
		ev("5", match.EventYellowCard, away),
		ev("6", match.EventSubstitutionIn, home),
		ev("7", match.EventSubstitutionOut, home),
		ev("8", match.EventInjury, away),
		ev("9", match.EventRedCard, away),
	}

	got, err := json.MarshalIndent(Fold(home, events), "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "fold_full_match", got)
}

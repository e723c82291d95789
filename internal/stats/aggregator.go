// Package stats folds match events into derived statistics.
//
// Everything here is pure: no I/O, no clocks, no shared state. Apply is
// deterministic for a given (stats, event) pair, so replaying the ledger
// through Fold always reproduces the same numbers. Whether a delta is
// applied at most once per event id is the store's job (it only calls
// Apply when the event row was actually inserted).
package stats

import "github.com/roach88/liveledger/internal/match"

// delta mutates one team's counters for a single event.
type delta func(ts *match.TeamStats, ev match.Event)

// dispatch is the fixed event-type table. Types not listed are no-ops.
var dispatch = map[match.EventType]delta{
	match.EventGoal: func(ts *match.TeamStats, ev match.Event) {
		ts.Goals++
		if ev.Data.GoalType == match.GoalTypePenalty {
			ts.PenaltyGoals++
		}
	},
	match.EventAssist: func(ts *match.TeamStats, _ match.Event) {
		ts.Assists++
	},
	match.EventYellowCard: func(ts *match.TeamStats, _ match.Event) {
		ts.YellowCards++
	},
	match.EventRedCard: func(ts *match.TeamStats, _ match.Event) {
		ts.RedCards++
	},
	// substitution_out is the other half of the same change and is not
	// counted again.
	match.EventSubstitutionIn: func(ts *match.TeamStats, _ match.Event) {
		ts.Substitutions++
	},
	match.EventInjury: func(ts *match.TeamStats, _ match.Event) {
		ts.Injuries++
	},
}

// Apply returns stats with ev folded in. The input is not modified.
// The affected side is home when ev.TeamID equals homeTeamID, away otherwise.
func Apply(s match.Stats, homeTeamID string, ev match.Event) match.Stats {
	fn, ok := dispatch[ev.Type]
	if !ok {
		return s
	}

	if ev.TeamID == homeTeamID {
		fn(&s.HomeTeam, ev)
	} else {
		fn(&s.AwayTeam, ev)
	}
	return Summarize(s)
}

// Fold computes stats from scratch over an ordered event list.
func Fold(homeTeamID string, events []match.Event) match.Stats {
	s := Summarize(match.Stats{})
	for _, ev := range events {
		s = Apply(s, homeTeamID, ev)
	}
	return s
}

// Summarize recomputes the match-level summaries from the team blocks.
func Summarize(s match.Stats) match.Stats {
	h, a := s.HomeTeam, s.AwayTeam
	s.Possession = match.Split{Home: h.Possession, Away: a.Possession}
	s.Shots = match.Split{Home: h.Shots, Away: a.Shots}
	s.Corners = match.Split{Home: h.Corners, Away: a.Corners}
	s.Fouls = match.Split{Home: h.Fouls, Away: a.Fouls}
	s.Cards = match.CardSummary{
		Yellow: match.Split{Home: h.YellowCards, Away: a.YellowCards},
		Red:    match.Split{Home: h.RedCards, Away: a.RedCards},
	}
	return s
}

// Equal reports whether two stats blocks carry the same counters.
func Equal(a, b match.Stats) bool {
	return a == b
}

package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/liveledger/internal/match"
)

// Snapshot is the deterministic part of a scenario result. Timestamps
// and queue item ids are left out.
type Snapshot struct {
	Scenario      string         `json:"scenario"`
	Trace         []TraceEvent   `json:"trace"`
	Matches       []MatchSummary `json:"matches"`
	Sync          SyncSummary    `json:"sync"`
	Notifications []string       `json:"notifications"`
}

// MatchSummary condenses a stored match.
type MatchSummary struct {
	ID     string            `json:"id"`
	Status match.Status      `json:"status"`
	Goals  match.Split       `json:"goals"`
	Cards  match.CardSummary `json:"cards"`
	// Events lists the ledger in order as "<minute>' <type> <team>".
	Events []string `json:"events"`
}

// SyncSummary condenses the sync engine status.
type SyncSummary struct {
	Online  bool `json:"online"`
	Pending int  `json:"pending"`
	Dropped int  `json:"dropped"`
	Failed  bool `json:"failed"`
}

// NewSnapshot builds the snapshot of a result.
func NewSnapshot(name string, r *Result) Snapshot {
	s := Snapshot{
		Scenario:      name,
		Trace:         r.Trace,
		Matches:       make([]MatchSummary, 0, len(r.Matches)),
		Notifications: r.Notifications,
		Sync: SyncSummary{
			Online:  r.Status.Online,
			Pending: r.Status.PendingItems,
			Dropped: r.Status.Dropped,
			Failed:  r.Status.LastError != "",
		},
	}
	if s.Trace == nil {
		s.Trace = []TraceEvent{}
	}
	if s.Notifications == nil {
		s.Notifications = []string{}
	}

	for _, m := range r.Matches {
		home, away := m.Stats.HomeTeam, m.Stats.AwayTeam
		ms := MatchSummary{
			ID:     m.ID,
			Status: m.Status,
			Goals:  match.Split{Home: home.Goals, Away: away.Goals},
			Cards: match.CardSummary{
				Yellow: match.Split{Home: home.YellowCards, Away: away.YellowCards},
				Red:    match.Split{Home: home.RedCards, Away: away.RedCards},
			},
			Events: make([]string, 0, len(m.Events)),
		}
		for _, ev := range m.Events {
			ms.Events = append(ms.Events, fmt.Sprintf("%d' %s %s", ev.Minute, ev.Type, ev.TeamID))
		}
		s.Matches = append(s.Matches, ms)
	}
	return s
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := json.MarshalIndent(NewSnapshot(name, result), "", "  ")
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

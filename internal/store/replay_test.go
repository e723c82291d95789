package store

import (
	"context"
	"testing"

	"github.com/roach88/liveledger/internal/match"
)

func TestVerifyLedger_NoDrift(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateMatch(ctx, createTestMatch("m-1")); err != nil {
		t.Fatalf("CreateMatch() failed: %v", err)
	}
	for i, typ := range []match.EventType{match.EventGoal, match.EventAssist, match.EventRedCard} {
		ev := createTestEvent("", "m-1", typ, "team-home", 10+i)
		if _, err := s.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent() failed: %v", err)
		}
	}

	r, err := s.VerifyLedger(ctx, "m-1")
	if err != nil {
		t.Fatalf("VerifyLedger() failed: %v", err)
	}
	if r.Drift {
		t.Errorf("unexpected drift: stored=%+v folded=%+v", r.Stored, r.Folded)
	}
	if r.Events != 3 {
		t.Errorf("events = %d, want 3", r.Events)
	}
}

func TestRepairLedger_FixesDrift(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateMatch(ctx, createTestMatch("m-1")); err != nil {
		t.Fatalf("CreateMatch() failed: %v", err)
	}
	if _, err := s.AppendEvent(ctx, createTestEvent("e-1", "m-1", match.EventGoal, "team-away", 12)); err != nil {
		t.Fatalf("AppendEvent() failed: %v", err)
	}

	// Corrupt the materialized view behind the store's back.
	if _, err := s.db.Exec(`UPDATE matches SET stats = '{"awayTeam":{"goals":5}}' WHERE id = 'm-1'`); err != nil {
		t.Fatalf("corrupt stats: %v", err)
	}

	reports, err := s.VerifyAll(ctx)
	if err != nil {
		t.Fatalf("VerifyAll() failed: %v", err)
	}
	if len(reports) != 1 || !reports[0].Drift {
		t.Fatalf("reports = %+v, want one drifted", reports)
	}

	before, err := s.RepairLedger(ctx, "m-1")
	if err != nil {
		t.Fatalf("RepairLedger() failed: %v", err)
	}
	if before.Stored.AwayTeam.Goals != 5 {
		t.Errorf("pre-repair goals = %d, want 5", before.Stored.AwayTeam.Goals)
	}

	after, err := s.VerifyLedger(ctx, "m-1")
	if err != nil {
		t.Fatalf("VerifyLedger() failed: %v", err)
	}
	if after.Drift || after.Stored.AwayTeam.Goals != 1 {
		t.Errorf("after repair: drift=%v goals=%d", after.Drift, after.Stored.AwayTeam.Goals)
	}
}

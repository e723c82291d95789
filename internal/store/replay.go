package store

import (
	"context"
	"fmt"

	"github.com/roach88/liveledger/internal/match"
	"github.com/roach88/liveledger/internal/stats"
)

// LedgerReport compares a match's stored stats with a fresh fold of its
// ledger.
type LedgerReport struct {
	MatchID string      `json:"matchId"`
	Events  int         `json:"events"`
	Stored  match.Stats `json:"stored"`
	Folded  match.Stats `json:"folded"`
	Drift   bool        `json:"drift"`
}

// VerifyLedger folds the ledger of one match and reports whether the stored
// stats have drifted from it.
func (s *Store) VerifyLedger(ctx context.Context, matchID string) (LedgerReport, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return LedgerReport{}, fmt.Errorf("verify ledger: %w", err)
	}
	return report(m), nil
}

// VerifyAll verifies every match in the store, in listing order.
func (s *Store) VerifyAll(ctx context.Context) ([]LedgerReport, error) {
	matches, err := s.ListMatches(ctx, match.Filter{})
	if err != nil {
		return nil, fmt.Errorf("verify all: %w", err)
	}

	reports := make([]LedgerReport, 0, len(matches))
	for i := range matches {
		reports = append(reports, report(&matches[i]))
	}
	return reports, nil
}

// RepairLedger overwrites drifted stats with the fold of the ledger.
// Returns the report taken before the repair.
func (s *Store) RepairLedger(ctx context.Context, matchID string) (LedgerReport, error) {
	r, err := s.VerifyLedger(ctx, matchID)
	if err != nil {
		return LedgerReport{}, err
	}
	if !r.Drift {
		return r, nil
	}
	if err := s.SetStats(ctx, matchID, r.Folded); err != nil {
		return r, fmt.Errorf("repair ledger: %w", err)
	}
	return r, nil
}

func report(m *match.LiveMatch) LedgerReport {
	folded := stats.Fold(m.HomeTeamID, m.Events)
	return LedgerReport{
		MatchID: m.ID,
		Events:  len(m.Events),
		Stored:  m.Stats,
		Folded:  folded,
		Drift:   !stats.Equal(m.Stats, folded),
	}
}

package live

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/liveledger/internal/engine"
	"github.com/roach88/liveledger/internal/match"
)

// Get returns a match from the store, or from the local cache while
// offline.
func (s *Service) Get(ctx context.Context, id string) (*match.LiveMatch, error) {
	m, err := s.lookup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	return m, nil
}

// List returns matches ordered by start time descending. While offline it
// answers from the local cache.
func (s *Service) List(ctx context.Context, f match.Filter) ([]match.LiveMatch, error) {
	if s.sync.Online() {
		matches, err := s.store.ListMatches(ctx, f)
		if err == nil {
			for i := range matches {
				s.remember(&matches[i])
			}
			return matches, nil
		}
		if !match.IsConnectivity(err) {
			return nil, fmt.Errorf("list: %w", err)
		}
		s.sync.ReportOffline()
	}
	return s.listCached(f), nil
}

func (s *Service) listCached(f match.Filter) []match.LiveMatch {
	s.mu.Lock()
	out := make([]match.LiveMatch, 0, len(s.cache))
	for _, m := range s.cache {
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.ClubID != "" && m.ClubID != f.ClubID {
			continue
		}
		if f.TournamentID != "" && m.TournamentID != f.TournamentID {
			continue
		}
		out = append(out, *m.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Events returns a match ledger in order.
func (s *Service) Events(ctx context.Context, matchID string) ([]match.Event, error) {
	m, err := s.lookup(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	if m.Events == nil {
		return []match.Event{}, nil
	}
	return m.Events, nil
}

// SubscribeMatch streams a match and every later version of it. A nil
// value means the match was deleted.
func (s *Service) SubscribeMatch(ctx context.Context, id string) (<-chan *match.LiveMatch, func(), error) {
	ch, cancel, err := s.store.SubscribeMatch(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe match: %w", err)
	}
	return ch, cancel, nil
}

// SubscribeEvents streams a match ledger and every event appended to it.
func (s *Service) SubscribeEvents(ctx context.Context, matchID string) (<-chan match.Event, func(), error) {
	ch, cancel, err := s.store.SubscribeEvents(ctx, matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe events: %w", err)
	}
	return ch, cancel, nil
}

// SubscribeActive streams the set of in-progress matches.
func (s *Service) SubscribeActive(ctx context.Context) (<-chan []match.LiveMatch, func(), error) {
	ch, cancel, err := s.store.SubscribeActive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe active: %w", err)
	}
	return ch, cancel, nil
}

// SubscribeStatus streams the sync engine's status.
func (s *Service) SubscribeStatus() (<-chan engine.SyncStatus, func()) {
	return s.sync.SubscribeStatus()
}

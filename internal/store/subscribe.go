package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/liveledger/internal/fanout"
	"github.com/roach88/liveledger/internal/match"
)

const activeTopic = "active"

// SubscribeMatch streams the current document of a match, then every later
// version of it. A deleted match is delivered as nil. Returns a NOT_FOUND
// error if the match does not exist.
func (s *Store) SubscribeMatch(ctx context.Context, id string) (<-chan *match.LiveMatch, func(), error) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	m, err := s.GetMatch(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe match: %w", err)
	}
	in, cancel := s.matchFeed.Subscribe(id)
	out, stop := fanout.Forward([]*match.LiveMatch{m}, in, cancel)
	return out, stop, nil
}

// SubscribeEvents streams the existing ledger of a match in order, then
// every event appended after it.
func (s *Store) SubscribeEvents(ctx context.Context, matchID string) (<-chan match.Event, func(), error) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	events, err := s.Events(ctx, matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe events: %w", err)
	}
	in, cancel := s.eventFeed.Subscribe(matchID)
	out, stop := fanout.Forward(events, in, cancel)
	return out, stop, nil
}

// SubscribeActive streams the set of in-progress matches, first as it is
// now and then again after every change.
func (s *Store) SubscribeActive(ctx context.Context) (<-chan []match.LiveMatch, func(), error) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	active, err := s.ListMatches(ctx, match.Filter{Status: match.StatusInProgress})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe active: %w", err)
	}
	in, cancel := s.activeFeed.Subscribe(activeTopic)
	out, stop := fanout.Forward([][]match.LiveMatch{active}, in, cancel)
	return out, stop, nil
}

// Deliver fans a change committed by another replica out to local
// subscribers. Changes stamped with this store's own origin are ignored.
func (s *Store) Deliver(ctx context.Context, ch match.Change) {
	if ch.Origin == s.origin {
		return
	}
	s.deliver(ctx, ch)
}

// publish stamps a locally committed change, relays it and delivers it.
// Called after commit; a failed relay does not undo the write.
func (s *Store) publish(ctx context.Context, ch match.Change) {
	ctx = context.WithoutCancel(ctx)
	ch.Origin = s.origin

	if s.relay != nil {
		if err := s.relay.Publish(ctx, ch); err != nil {
			slog.Warn("relay publish failed",
				"match_id", ch.MatchID,
				"kind", ch.Kind,
				"error", err,
			)
		}
	}
	s.deliver(ctx, ch)
}

// deliver reloads what subscribers need and pushes it. Holding pubMu keeps
// delivery ordered against subscription snapshots.
func (s *Store) deliver(ctx context.Context, ch match.Change) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	if ch.Kind == match.ChangeEvent && ch.Event != nil {
		s.eventFeed.Publish(ch.MatchID, *ch.Event)
	}

	if s.matchFeed.Subscribers(ch.MatchID) > 0 {
		if ch.Kind == match.ChangeDeleted {
			s.matchFeed.Publish(ch.MatchID, nil)
		} else if m, err := s.GetMatch(ctx, ch.MatchID); err == nil {
			s.matchFeed.Publish(ch.MatchID, m)
		} else {
			slog.Warn("reload for subscribers failed", "match_id", ch.MatchID, "error", err)
		}
	}

	if s.activeFeed.Subscribers(activeTopic) > 0 {
		active, err := s.ListMatches(ctx, match.Filter{Status: match.StatusInProgress})
		if err != nil {
			slog.Warn("reload active set failed", "error", err)
			return
		}
		s.activeFeed.Publish(activeTopic, active)
	}
}

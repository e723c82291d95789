package live

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/liveledger/internal/engine"
	"github.com/roach88/liveledger/internal/match"
	"github.com/roach88/liveledger/internal/queue"
	"github.com/roach88/liveledger/internal/stats"
)

// AddEvent records an event in a match ledger. The event gets its id,
// creation time and creator here; the store appends it and applies its
// stats delta in one transaction.
//
// A deferred event is not in the returned match's ledger or stats: both
// only change once the store accepts it. Milestone notifications fire
// either way.
func (s *Service) AddEvent(ctx context.Context, matchID string, ev match.Event) (Outcome, error) {
	if s.auth != nil && !s.auth.CanRecordEvent(s.op.Role) {
		return Outcome{}, fmt.Errorf("add event: %w", match.NewForbiddenError(s.op.Role, "record match events"))
	}

	m, err := s.lookup(ctx, matchID)
	if err != nil {
		return Outcome{}, fmt.Errorf("add event: %w", err)
	}

	now := s.clock.Now()
	ev.MatchID = matchID
	ev.ID = s.ids.Generate()
	ev.CreatedAt = now
	ev.CreatedBy = s.op.ID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now
	}
	match.NormalizeEventText(&ev.Data)
	if err := match.ValidateEvent(&ev, m); err != nil {
		return Outcome{}, fmt.Errorf("add event: %w", err)
	}

	out, err := s.write(ctx,
		func(ctx context.Context) error {
			_, err := s.store.AppendEvent(ctx, ev)
			return err
		},
		func() (queue.Mutation, error) { return engine.AppendEvent(ev) },
	)
	if err != nil {
		return Outcome{}, fmt.Errorf("add event: %w", err)
	}

	out.Event = &ev
	if out.Deferred {
		out.Match = m
	} else {
		out.Match = s.afterAppend(ctx, m, ev)
	}

	if ev.Type.Milestone() {
		s.notifyEvent(ctx, out.Match, ev)
	}
	return out, nil
}

// afterAppend returns the match as the store now has it, falling back to
// folding the event into the cached copy.
func (s *Service) afterAppend(ctx context.Context, m *match.LiveMatch, ev match.Event) *match.LiveMatch {
	if fresh, err := s.store.GetMatch(ctx, m.ID); err == nil {
		s.remember(fresh)
		return fresh
	}
	m.Events = append(m.Events, ev)
	m.Stats = stats.Apply(m.Stats, m.HomeTeamID, ev)
	s.remember(m)
	return m
}

func (s *Service) notifyEvent(ctx context.Context, m *match.LiveMatch, ev match.Event) {
	team := s.teamName(ctx, ev.TeamID)
	var title string
	switch ev.Type {
	case match.EventGoal:
		title = "Goal!"
		if ev.Data.GoalType == match.GoalTypePenalty {
			title = "Penalty goal!"
		}
	case match.EventPenaltyGoal:
		title = "Penalty goal!"
	case match.EventRedCard:
		title = "Red card"
	default:
		title = string(ev.Type)
	}
	body := fmt.Sprintf("%s, %d'", team, ev.Minute)
	if m != nil {
		body = fmt.Sprintf("%s (%s v %s)", body, s.teamName(ctx, m.HomeTeamID), s.teamName(ctx, m.AwayTeamID))
	}
	s.notify(ctx, title, body)
}

func (s *Service) notifyMatch(ctx context.Context, title string, m *match.LiveMatch, what string) {
	if m == nil {
		return
	}
	body := fmt.Sprintf("%s v %s: %s", s.teamName(ctx, m.HomeTeamID), s.teamName(ctx, m.AwayTeamID), what)
	s.notify(ctx, title, body)
}

// notify is fire-and-forget: failures are logged, never returned.
func (s *Service) notify(ctx context.Context, title, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, title, body); err != nil {
		slog.Warn("notification failed", "title", title, "error", err)
	}
}

func (s *Service) teamName(ctx context.Context, teamID string) string {
	if s.dir == nil {
		return teamID
	}
	name, err := s.dir.TeamName(ctx, teamID)
	if err != nil || name == "" {
		return teamID
	}
	return name
}

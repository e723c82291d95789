package live

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/liveledger/internal/engine"
	"github.com/roach88/liveledger/internal/match"
	"github.com/roach88/liveledger/internal/queue"
	"github.com/roach88/liveledger/internal/stats"
)

// Create validates and records a new match. The id is assigned here so a
// queued create replays idempotently.
func (s *Service) Create(ctx context.Context, m match.LiveMatch) (Outcome, error) {
	if err := match.ValidateNew(&m); err != nil {
		return Outcome{}, fmt.Errorf("create: %w", err)
	}

	now := s.clock.Now()
	if m.ID == "" {
		m.ID = s.ids.Generate()
	}
	if m.Status == "" {
		m.Status = match.StatusScheduled
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.CreatedBy == "" {
		m.CreatedBy = s.op.ID
	}
	m.Events = []match.Event{}
	m.Stats = stats.Summarize(match.Stats{})

	out, err := s.write(ctx,
		func(ctx context.Context) error {
			_, err := s.store.CreateMatch(ctx, m)
			return err
		},
		func() (queue.Mutation, error) { return engine.CreateMatch(m) },
	)
	if err != nil {
		return Outcome{}, fmt.Errorf("create: %w", err)
	}

	s.remember(&m)
	if out.Deferred {
		s.mu.Lock()
		s.unsynced[m.ID] = true
		s.mu.Unlock()
	}
	out.Match = m.Clone()
	return out, nil
}

// Start moves a scheduled match to in_progress and stamps its start time.
func (s *Service) Start(ctx context.Context, id string) (Outcome, error) {
	out, err := s.transition(ctx, id, match.StatusInProgress, []match.Status{match.StatusScheduled},
		func(p *match.Patch, now time.Time) { p.StartTime = &now })
	if err != nil {
		return Outcome{}, fmt.Errorf("start: %w", err)
	}
	s.notifyMatch(ctx, "Match started", out.Match, "kick-off")
	return out, nil
}

// End completes an in-progress or halftime match and stamps its end time.
func (s *Service) End(ctx context.Context, id string) (Outcome, error) {
	out, err := s.transition(ctx, id, match.StatusCompleted, []match.Status{match.StatusInProgress, match.StatusHalftime},
		func(p *match.Patch, now time.Time) { p.EndTime = &now })
	if err != nil {
		return Outcome{}, fmt.Errorf("end: %w", err)
	}
	s.notifyMatch(ctx, "Match ended", out.Match, "full time")
	return out, nil
}

// Halftime pauses an in-progress match.
func (s *Service) Halftime(ctx context.Context, id string) (Outcome, error) {
	out, err := s.transition(ctx, id, match.StatusHalftime, []match.Status{match.StatusInProgress}, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("halftime: %w", err)
	}
	return out, nil
}

// Resume restarts play after halftime.
func (s *Service) Resume(ctx context.Context, id string) (Outcome, error) {
	out, err := s.transition(ctx, id, match.StatusInProgress, []match.Status{match.StatusHalftime}, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("resume: %w", err)
	}
	return out, nil
}

// Postpone suspends a match that has started.
func (s *Service) Postpone(ctx context.Context, id string) (Outcome, error) {
	out, err := s.transition(ctx, id, match.StatusPostponed, []match.Status{match.StatusInProgress, match.StatusHalftime}, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("postpone: %w", err)
	}
	return out, nil
}

// Cancel abandons a match that has started. Cancelled is terminal.
func (s *Service) Cancel(ctx context.Context, id string) (Outcome, error) {
	out, err := s.transition(ctx, id, match.StatusCancelled, []match.Status{match.StatusInProgress, match.StatusHalftime}, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("cancel: %w", err)
	}
	return out, nil
}

// Reschedule puts a postponed match back on the calendar at startTime.
func (s *Service) Reschedule(ctx context.Context, id string, startTime time.Time) (Outcome, error) {
	if startTime.IsZero() {
		return Outcome{}, fmt.Errorf("reschedule: %w", match.NewValidationError("startTime", "required"))
	}
	out, err := s.transition(ctx, id, match.StatusScheduled, []match.Status{match.StatusPostponed},
		func(p *match.Patch, _ time.Time) {
			t := startTime.UTC()
			p.StartTime = &t
		})
	if err != nil {
		return Outcome{}, fmt.Errorf("reschedule: %w", err)
	}
	return out, nil
}

// Update patches match fields and always stamps the update time. Status
// changes must go through the lifecycle operations.
func (s *Service) Update(ctx context.Context, id string, p match.Patch) (Outcome, error) {
	if p.Status != nil {
		return Outcome{}, fmt.Errorf("update: %w", match.NewValidationError("status", "use the lifecycle operations to change status"))
	}
	if _, err := s.lookup(ctx, id); err != nil {
		return Outcome{}, fmt.Errorf("update: %w", err)
	}
	p.UpdatedAt = s.clock.Now()
	return s.apply(ctx, id, p, "update")
}

// transition checks the status table against the freshest known status,
// then writes the new status plus any stamped fields.
func (s *Service) transition(ctx context.Context, id string, to match.Status, from []match.Status, stamp func(p *match.Patch, now time.Time)) (Outcome, error) {
	m, err := s.lookup(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if !allowed(m.Status, from) || !match.CanTransition(m.Status, to) {
		return Outcome{}, match.NewTransitionError(id, m.Status, to)
	}

	now := s.clock.Now()
	p := match.Patch{Status: &to, UpdatedAt: now}
	if stamp != nil {
		stamp(&p, now)
	}
	return s.apply(ctx, id, p, "transition")
}

func (s *Service) apply(ctx context.Context, id string, p match.Patch, op string) (Outcome, error) {
	out, err := s.write(ctx,
		func(ctx context.Context) error { return s.store.UpdateMatch(ctx, id, p) },
		func() (queue.Mutation, error) { return engine.UpdateMatch(id, p) },
	)
	if err != nil {
		return Outcome{}, err
	}

	out.Match = s.patchCache(id, p)
	if !out.Deferred {
		if fresh, err := s.store.GetMatch(ctx, id); err == nil {
			s.remember(fresh)
			out.Match = fresh
		}
	}
	if out.Match == nil {
		return Outcome{}, fmt.Errorf("%s: %w", op, match.NewNotFoundError(id))
	}
	return out, nil
}

// Delete removes a match and its ledger. Privileged.
func (s *Service) Delete(ctx context.Context, id string) (Outcome, error) {
	if !s.canDelete() {
		return Outcome{}, fmt.Errorf("delete: %w", match.NewForbiddenError(s.op.Role, "delete matches"))
	}

	out, err := s.write(ctx,
		func(ctx context.Context) error { return s.store.DeleteMatch(ctx, id) },
		func() (queue.Mutation, error) { return engine.DeleteMatch(id), nil },
	)
	if err != nil {
		return Outcome{}, fmt.Errorf("delete: %w", err)
	}
	s.forget(id)
	return out, nil
}

func allowed(status match.Status, from []match.Status) bool {
	for _, f := range from {
		if status == f {
			return true
		}
	}
	return false
}

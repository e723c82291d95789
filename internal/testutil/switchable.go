package testutil

import (
	"context"
	"sync"

	"github.com/roach88/liveledger/internal/match"
)

// Backend is the match store contract wrapped by SwitchableStore.
type Backend interface {
	CreateMatch(ctx context.Context, m match.LiveMatch) (string, error)
	GetMatch(ctx context.Context, id string) (*match.LiveMatch, error)
	ListMatches(ctx context.Context, f match.Filter) ([]match.LiveMatch, error)
	Events(ctx context.Context, matchID string) ([]match.Event, error)
	UpdateMatch(ctx context.Context, id string, p match.Patch) error
	DeleteMatch(ctx context.Context, id string) error
	AppendEvent(ctx context.Context, ev match.Event) (bool, error)
	SubscribeMatch(ctx context.Context, id string) (<-chan *match.LiveMatch, func(), error)
	SubscribeEvents(ctx context.Context, matchID string) (<-chan match.Event, func(), error)
	SubscribeActive(ctx context.Context) (<-chan []match.LiveMatch, func(), error)
}

// SwitchableStore wraps a Backend and can simulate losing the network.
//
// While offline every call fails with match.ErrOffline without reaching
// the backend. FailWrites makes writes fail with a given error while reads
// and probes still succeed, which is how a flaky remote looks to a drain.
type SwitchableStore struct {
	inner Backend

	mu       sync.Mutex
	offline  bool
	writeErr error
	writes   int
	rejected int
}

// NewSwitchableStore wraps inner, starting online.
func NewSwitchableStore(inner Backend) *SwitchableStore {
	return &SwitchableStore{inner: inner}
}

// SetOffline simulates losing (true) or regaining (false) the network.
func (s *SwitchableStore) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// FailWrites makes every write fail with err. nil restores normal writes.
func (s *SwitchableStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Writes returns the number of writes that reached the backend.
func (s *SwitchableStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Rejected returns the number of writes refused while offline or failing.
func (s *SwitchableStore) Rejected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

// Probe fails while offline.
func (s *SwitchableStore) Probe(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return match.ErrOffline
	}
	return nil
}

func (s *SwitchableStore) read() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return match.ErrOffline
	}
	return nil
}

func (s *SwitchableStore) write() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.offline:
		s.rejected++
		return match.ErrOffline
	case s.writeErr != nil:
		s.rejected++
		return s.writeErr
	}
	s.writes++
	return nil
}

func (s *SwitchableStore) CreateMatch(ctx context.Context, m match.LiveMatch) (string, error) {
	if err := s.write(); err != nil {
		return "", err
	}
	return s.inner.CreateMatch(ctx, m)
}

func (s *SwitchableStore) GetMatch(ctx context.Context, id string) (*match.LiveMatch, error) {
	if err := s.read(); err != nil {
		return nil, err
	}
	return s.inner.GetMatch(ctx, id)
}

func (s *SwitchableStore) ListMatches(ctx context.Context, f match.Filter) ([]match.LiveMatch, error) {
	if err := s.read(); err != nil {
		return nil, err
	}
	return s.inner.ListMatches(ctx, f)
}

func (s *SwitchableStore) Events(ctx context.Context, matchID string) ([]match.Event, error) {
	if err := s.read(); err != nil {
		return nil, err
	}
	return s.inner.Events(ctx, matchID)
}

func (s *SwitchableStore) UpdateMatch(ctx context.Context, id string, p match.Patch) error {
	if err := s.write(); err != nil {
		return err
	}
	return s.inner.UpdateMatch(ctx, id, p)
}

func (s *SwitchableStore) DeleteMatch(ctx context.Context, id string) error {
	if err := s.write(); err != nil {
		return err
	}
	return s.inner.DeleteMatch(ctx, id)
}

func (s *SwitchableStore) AppendEvent(ctx context.Context, ev match.Event) (bool, error) {
	if err := s.write(); err != nil {
		return false, err
	}
	return s.inner.AppendEvent(ctx, ev)
}

func (s *SwitchableStore) SubscribeMatch(ctx context.Context, id string) (<-chan *match.LiveMatch, func(), error) {
	if err := s.read(); err != nil {
		return nil, nil, err
	}
	return s.inner.SubscribeMatch(ctx, id)
}

func (s *SwitchableStore) SubscribeEvents(ctx context.Context, matchID string) (<-chan match.Event, func(), error) {
	if err := s.read(); err != nil {
		return nil, nil, err
	}
	return s.inner.SubscribeEvents(ctx, matchID)
}

func (s *SwitchableStore) SubscribeActive(ctx context.Context) (<-chan []match.LiveMatch, func(), error) {
	if err := s.read(); err != nil {
		return nil, nil, err
	}
	return s.inner.SubscribeActive(ctx)
}

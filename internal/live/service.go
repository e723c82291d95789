// Package live is the public face of the match ledger on an operator's
// device: lifecycle operations, event recording and subscriptions.
//
// Every mutation first tries the match store. If the device is known to be
// offline, or the store call fails for lack of connectivity, the same
// write is handed to the sync engine's queue and the call succeeds with
// Outcome.Deferred set. Validation, not-found, transition and permission
// failures are returned and never queued.
//
// The service keeps a cache of the matches it has seen so lifecycle
// transitions and event teams can still be checked while offline. A
// deferred write updates the cached status but never the cached stats:
// stats only move when the store accepts the event.
package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/liveledger/internal/engine"
	"github.com/roach88/liveledger/internal/match"
	"github.com/roach88/liveledger/internal/queue"
)

// Store is the match store contract the service writes to and reads from.
// Implemented by *store.Store and *remote.Client.
type Store interface {
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

// Syncer is the sync engine as the service sees it.
// Implemented by *engine.Engine.
type Syncer interface {
	Enqueue(ctx context.Context, m queue.Mutation) (queue.Item, error)
	ForceSync(ctx context.Context) (queue.DrainReport, error)
	Status() engine.SyncStatus
	SubscribeStatus() (<-chan engine.SyncStatus, func())
	Online() bool
	ReportOffline()
}

// Notifier triggers a device notification. Failures are logged and
// swallowed.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Directory resolves display names. Only used for notification text;
// a lookup failure never blocks a write.
type Directory interface {
	TeamName(ctx context.Context, teamID string) (string, error)
}

// Operator identifies who is using the device.
type Operator struct {
	ID   string
	Role string
}

// Outcome is the result of a mutation.
type Outcome struct {
	// Match is the match after the mutation, as far as this device knows.
	Match *match.LiveMatch
	// Event is the recorded event, for AddEvent.
	Event *match.Event
	// Deferred is set when the write was queued instead of applied.
	Deferred bool
	// QueueItemID identifies the queued item when Deferred is set.
	QueueItemID string
}

// Service is the live match facade. Safe for concurrent use.
type Service struct {
	store    Store
	sync     Syncer
	notifier Notifier
	auth     Authorizer
	dir      Directory
	op       Operator
	clock    match.Clock
	ids      match.IDGenerator

	mu    sync.Mutex
	cache map[string]*match.LiveMatch
	// unsynced holds ids of matches created while offline, which the store
	// does not know about yet.
	unsynced map[string]bool
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the milestone notification sink.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithAuthorizer sets the capability check.
// Default: DefaultAuthorizer
func WithAuthorizer(a Authorizer) Option {
	return func(s *Service) { s.auth = a }
}

// WithDirectory sets the display-name lookup.
func WithDirectory(d Directory) Option {
	return func(s *Service) { s.dir = d }
}

// WithOperator sets the device operator.
func WithOperator(op Operator) Option {
	return func(s *Service) { s.op = op }
}

// WithClock sets the clock for audit stamps.
func WithClock(c match.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithIDGenerator sets the generator for match and event ids.
func WithIDGenerator(g match.IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// New creates a service over a store and a sync engine.
func New(store Store, syncer Syncer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		sync:     syncer,
		auth:     DefaultAuthorizer,
		clock:    match.SystemClock{},
		ids:      match.UUIDv7Generator{},
		cache:    make(map[string]*match.LiveMatch),
		unsynced: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueueStatus returns the sync engine's current status.
func (s *Service) QueueStatus() engine.SyncStatus {
	return s.sync.Status()
}

// ForceSync drains the queue now.
func (s *Service) ForceSync(ctx context.Context) (queue.DrainReport, error) {
	return s.sync.ForceSync(ctx)
}

// write applies a mutation directly, or queues it when the device is
// offline or the store turns out to be unreachable.
func (s *Service) write(ctx context.Context, direct func(ctx context.Context) error, queued func() (queue.Mutation, error)) (Outcome, error) {
	if s.sync.Online() {
		err := direct(ctx)
		if err == nil {
			return Outcome{}, nil
		}
		if !match.IsConnectivity(err) {
			return Outcome{}, err
		}
		slog.Warn("store unreachable, queueing write", "error", err)
		s.sync.ReportOffline()
	}

	mut, err := queued()
	if err != nil {
		return Outcome{}, err
	}
	it, err := s.sync.Enqueue(ctx, mut)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Deferred: true, QueueItemID: it.ID}, nil
}

// remember caches a copy of m.
func (s *Service) remember(m *match.LiveMatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[m.ID] = m.Clone()
}

// cached returns a copy of the cached match, or nil.
func (s *Service) cached(id string) *match.LiveMatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.cache[id]; ok {
		return m.Clone()
	}
	return nil
}

// patchCache applies p to the cached match and returns a copy.
func (s *Service) patchCache(id string, p match.Patch) *match.LiveMatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.cache[id]
	if !ok {
		return nil
	}
	p.ApplyTo(m)
	return m.Clone()
}

func (s *Service) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, id)
	delete(s.unsynced, id)
}

// lookup returns the freshest copy of a match this device can get: the
// store when reachable, the cache otherwise.
func (s *Service) lookup(ctx context.Context, id string) (*match.LiveMatch, error) {
	if s.sync.Online() {
		m, err := s.store.GetMatch(ctx, id)
		switch {
		case err == nil:
			s.mu.Lock()
			delete(s.unsynced, id)
			s.mu.Unlock()
			s.remember(m)
			return m, nil
		case match.IsConnectivity(err):
			s.sync.ReportOffline()
		case match.IsNotFound(err):
			s.mu.Lock()
			pending := s.unsynced[id]
			s.mu.Unlock()
			if !pending {
				s.forget(id)
				return nil, err
			}
		default:
			return nil, err
		}
	}

	if m := s.cached(id); m != nil {
		return m, nil
	}
	return nil, match.NewNotFoundError(id)
}

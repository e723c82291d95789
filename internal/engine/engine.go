package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/liveledger/internal/fanout"
	"github.com/roach88/liveledger/internal/match"
	"github.com/roach88/liveledger/internal/queue"
)

const statusTopic = "status"

// Monitor is the connectivity signal the engine follows.
// Implemented by *connectivity.Monitor.
type Monitor interface {
	Online() bool
	Report(online bool)
	OnChange(fn func(online bool))
	OnReconnect(fn func())
}

// Engine drains the mutation queue against the store.
//
// Thread-safety model:
//   - every exported method is safe from any goroutine
//   - drains are serialized by the queue; overlapping requests are skipped
//   - status changes are published to observers in the order they happen
type Engine struct {
	store   Store
	queue   *queue.Queue
	monitor Monitor
	clock   match.Clock

	mu       sync.Mutex
	status   SyncStatus
	draining int  // drains in flight, including ones the queue will skip
	sticky   bool // LastError came from a dropped item
	baseCtx  context.Context
	started  bool
	stopped  bool

	feed *fanout.Broker[SyncStatus]
	wg   sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for LastSyncAt.
func WithClock(c match.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an engine. Call Start before use.
func New(s Store, q *queue.Queue, m Monitor, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		queue:   q,
		monitor: m,
		clock:   match.SystemClock{},
		baseCtx: context.Background(),
		feed:    fanout.NewBroker[SyncStatus]("sync-status", 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start computes the initial status from the persisted queue, registers
// for connectivity transitions and, if the device is online with pending
// items, starts a drain.
//
// ctx bounds every asynchronous drain the engine starts.
func (e *Engine) Start(ctx context.Context) error {
	pending, err := e.queue.Len(ctx)
	if err != nil {
		return fmt.Errorf("engine start: %w", err)
	}

	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.New("engine start: already started")
	}
	e.started = true
	e.baseCtx = ctx
	e.mu.Unlock()

	online := e.monitor.Online()
	e.update(func(s *SyncStatus) {
		s.Online = online
		s.PendingItems = pending
	})

	e.monitor.OnChange(func(online bool) {
		e.update(func(s *SyncStatus) { s.Online = online })
	})
	e.monitor.OnReconnect(e.trigger)

	slog.Info("sync engine started", "online", online, "pending", pending)

	if online && pending > 0 {
		e.trigger()
	}
	return nil
}

// Stop waits for in-flight drains and closes status subscriptions.
// Reconnects after Stop no longer start drains; ForceSync still works.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	e.wg.Wait()
	e.feed.Close()
}

// Wait blocks until every asynchronous drain started so far has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Online reports the monitor's current view.
func (e *Engine) Online() bool {
	return e.monitor.Online()
}

// ReportOffline tells the monitor a store call failed for lack of
// connectivity.
func (e *Engine) ReportOffline() {
	e.monitor.Report(false)
}

// Status returns a snapshot of the current SyncStatus.
func (e *Engine) Status() SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status.clone()
}

// SubscribeStatus streams the current status followed by every change.
func (e *Engine) SubscribeStatus() (<-chan SyncStatus, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	in, cancel := e.feed.Subscribe(statusTopic)
	return fanout.Forward([]SyncStatus{e.status.clone()}, in, cancel)
}

// AcknowledgeError clears LastError, including one left by dropped items.
// Dropped keeps counting.
func (e *Engine) AcknowledgeError() {
	e.update(func(s *SyncStatus) {
		s.LastError = ""
		e.sticky = false
	})
}

// Enqueue persists a mutation and, if the device is online, starts a
// drain.
func (e *Engine) Enqueue(ctx context.Context, m queue.Mutation) (queue.Item, error) {
	it, err := e.queue.Enqueue(ctx, m)
	if err != nil {
		return queue.Item{}, err
	}

	e.refreshPending(ctx)
	if e.monitor.Online() {
		e.trigger()
	}
	return it, nil
}

// ForceSync runs a drain now, whatever the connectivity state, and waits
// for it. If a drain is already running the report has Skipped set.
func (e *Engine) ForceSync(ctx context.Context) (queue.DrainReport, error) {
	return e.drain(ctx)
}

// trigger starts an asynchronous drain unless the engine is stopped.
func (e *Engine) trigger() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		slog.Debug("sync engine stopped, not draining")
		return
	}
	ctx := e.baseCtx
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		if _, err := e.drain(ctx); err != nil {
			slog.Error("background drain failed", "error", err)
		}
	}()
}

func (e *Engine) drain(ctx context.Context) (queue.DrainReport, error) {
	e.update(func(s *SyncStatus) {
		e.draining++
		s.InProgress = true
	})

	var connErr bool
	report, err := e.queue.Drain(ctx, func(ctx context.Context, it queue.Item) error {
		applyErr := Apply(ctx, e.store, it)
		if match.IsConnectivity(applyErr) {
			connErr = true
		}
		return applyErr
	})

	now := e.clock.Now()
	e.mu.Lock()
	pending := report.Remaining
	if report.Settled {
		pending = e.pendingLocked(ctx, pending)
	}
	e.updateLocked(func(s *SyncStatus) {
		e.draining--
		s.InProgress = e.draining > 0
		// Without a merge there is nothing to report. A merge whose persist
		// failed still dropped and removed items.
		if report.Skipped || !report.Settled {
			return
		}
		s.PendingItems = pending

		if n := len(report.Dropped); n > 0 {
			last := report.Dropped[n-1]
			s.Dropped += n
			s.LastError = match.NewRetryExhaustedError(n, last.Item.ID, last.Err).Error()
			e.sticky = true
		} else if err != nil {
			if !e.sticky {
				s.LastError = err.Error()
			}
		} else if report.Retried > 0 {
			if !e.sticky {
				s.LastError = fmt.Sprintf("%d queued mutation(s) failed, will retry", report.Retried)
			}
		} else if !e.sticky {
			s.LastError = ""
		}

		if report.Applied > 0 {
			s.LastSyncAt = &now
		}
	})
	e.mu.Unlock()

	if connErr {
		e.monitor.Report(false)
	}
	if err != nil {
		return report, fmt.Errorf("sync: %w", err)
	}
	return report, nil
}

// refreshPending publishes the queue length. The length is read under mu
// so a count published here is never older than one a drain published.
func (e *Engine) refreshPending(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, err := e.queue.Len(ctx)
	if err != nil {
		slog.Warn("read queue length failed", "error", err)
		return
	}
	e.updateLocked(func(s *SyncStatus) { s.PendingItems = n })
}

// pendingLocked reads the queue length, falling back when the queue is
// closed. Caller holds mu.
func (e *Engine) pendingLocked(ctx context.Context, fallback int) int {
	n, err := e.queue.Len(context.WithoutCancel(ctx))
	if err != nil {
		return fallback
	}
	return n
}

// update mutates the status under the lock and publishes the result if it
// changed.
func (e *Engine) update(fn func(s *SyncStatus)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateLocked(fn)
}

func (e *Engine) updateLocked(fn func(s *SyncStatus)) {
	before := e.status.clone()
	fn(&e.status)
	if equalStatus(before, e.status) {
		return
	}
	e.feed.Publish(statusTopic, e.status.clone())
}

func equalStatus(a, b SyncStatus) bool {
	if (a.LastSyncAt == nil) != (b.LastSyncAt == nil) {
		return false
	}
	if a.LastSyncAt != nil && !a.LastSyncAt.Equal(*b.LastSyncAt) {
		return false
	}
	a.LastSyncAt, b.LastSyncAt = nil, nil
	return a == b
}

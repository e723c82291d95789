// Package queue is the device-local mutation queue: an ordered, persisted
// list of write intents that could not reach the match store yet.
//
// A single goroutine owns the item list. Every operation is a message to
// that goroutine, so enqueue, drain bookkeeping and persistence never
// interleave. Applying items to the store happens outside the owner: a
// drain snapshots the list, applies the snapshot in FIFO order, then merges
// the results back. Items enqueued while a drain is applying stay queued for
// the next pass.
//
// The whole list is persisted as one JSON blob under StorageKey after every
// change.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/liveledger/internal/match"
)

// StorageKey is the local storage key holding the serialized queue.
const StorageKey = "offline_queue"

// DefaultMaxRetries is the number of failed attempts after which an item is
// dropped.
const DefaultMaxRetries = 3

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = errors.New("queue closed")

// Storage persists the serialized queue.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// ApplyFunc applies one item to the match store.
type ApplyFunc func(ctx context.Context, it Item) error

// state is owned by the loop goroutine.
type state struct {
	items    []Item
	draining bool
}

// Queue is the actor-owned mutation queue. Safe for concurrent use.
type Queue struct {
	storage    Storage
	key        string
	maxRetries int
	clock      match.Clock
	ids        match.IDGenerator

	reqs      chan func(*state)
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxRetries sets the attempts allowed for newly enqueued items.
// Default: 3 (DefaultMaxRetries)
func WithMaxRetries(n int) Option {
	return func(q *Queue) { q.maxRetries = n }
}

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(q *Queue) { q.key = key }
}

// WithClock sets the clock used for enqueue timestamps.
func WithClock(c match.Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithIDGenerator sets the generator for item ids.
func WithIDGenerator(g match.IDGenerator) Option {
	return func(q *Queue) { q.ids = g }
}

// Open loads the persisted queue from storage and starts its owner
// goroutine. Call Close to stop it.
func Open(ctx context.Context, storage Storage, opts ...Option) (*Queue, error) {
	q := &Queue{
		storage:    storage,
		key:        StorageKey,
		maxRetries: DefaultMaxRetries,
		clock:      match.SystemClock{},
		ids:        match.UUIDv7Generator{},
		reqs:       make(chan func(*state)),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.maxRetries <= 0 {
		return nil, fmt.Errorf("open queue: max retries must be positive, got %d", q.maxRetries)
	}

	blob, err := storage.Load(ctx, q.key)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	st := &state{items: []Item{}}
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &st.items); err != nil {
			return nil, fmt.Errorf("open queue: decode %s: %w", q.key, err)
		}
	}
	for i := range st.items {
		if st.items[i].MaxRetries <= 0 {
			st.items[i].MaxRetries = q.maxRetries
		}
	}

	slog.Debug("queue loaded", "key", q.key, "items", len(st.items))
	go q.loop(st)
	return q, nil
}

// Close stops the owner goroutine. Pending items stay persisted.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	<-q.stopped
	return nil
}

func (q *Queue) loop(st *state) {
	defer close(q.stopped)
	for {
		select {
		case req := <-q.reqs:
			req(st)
		case <-q.done:
			return
		}
	}
}

// call runs fn on the owner goroutine and waits for it to finish.
func (q *Queue) call(ctx context.Context, fn func(*state)) error {
	finished := make(chan struct{})
	req := func(st *state) {
		defer close(finished)
		fn(st)
	}

	select {
	case q.reqs <- req:
	case <-q.stopped:
		return ErrClosed
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// persist writes the item list to storage. Runs on the owner goroutine.
func (q *Queue) persist(ctx context.Context, items []Item) error {
	blob, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := q.storage.Save(ctx, q.key, blob); err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	return nil
}

// Enqueue appends a mutation and persists the queue. The item is only
// queued if it was persisted.
func (q *Queue) Enqueue(ctx context.Context, m Mutation) (Item, error) {
	it := Item{
		ID:         q.ids.Generate(),
		Type:       m.Kind,
		Collection: m.Collection,
		DocumentID: m.DocumentID,
		Data:       m.Data,
		Timestamp:  q.clock.Now(),
		MaxRetries: q.maxRetries,
	}

	var perr error
	err := q.call(ctx, func(st *state) {
		st.items = append(st.items, it)
		if perr = q.persist(ctx, st.items); perr != nil {
			st.items = st.items[:len(st.items)-1]
		}
	})
	if err != nil {
		return Item{}, fmt.Errorf("enqueue: %w", err)
	}
	if perr != nil {
		return Item{}, fmt.Errorf("enqueue: %w", perr)
	}

	slog.Info("mutation queued",
		"item_id", it.ID,
		"type", it.Type,
		"collection", it.Collection,
		"document_id", it.DocumentID,
	)
	return it, nil
}

// Items returns a copy of the queued items in FIFO order.
func (q *Queue) Items(ctx context.Context) ([]Item, error) {
	var out []Item
	err := q.call(ctx, func(st *state) {
		out = make([]Item, len(st.items))
		copy(out, st.items)
	})
	return out, err
}

// Len returns the number of queued items.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	err := q.call(ctx, func(st *state) { n = len(st.items) })
	return n, err
}

// Draining reports whether a drain pass is running.
func (q *Queue) Draining(ctx context.Context) (bool, error) {
	var d bool
	err := q.call(ctx, func(st *state) { d = st.draining })
	return d, err
}

// Drain makes one pass over the queue, applying every item with apply in
// FIFO order:
//   - success removes the item
//   - failure increments its retry count
//   - an item whose retry count reaches its max retries is removed and
//     reported in DrainReport.Dropped
//
// Only one drain runs at a time; a concurrent call returns a report with
// Skipped set. If ctx is cancelled mid-pass the unattempted items are left
// untouched.
func (q *Queue) Drain(ctx context.Context, apply ApplyFunc) (DrainReport, error) {
	var snapshot []Item
	var skipped bool
	err := q.call(ctx, func(st *state) {
		if st.draining {
			skipped = true
			return
		}
		st.draining = true
		snapshot = make([]Item, len(st.items))
		copy(snapshot, st.items)
	})
	if err != nil {
		return DrainReport{}, fmt.Errorf("drain: %w", err)
	}
	if skipped {
		slog.Debug("drain already in progress, skipping")
		return DrainReport{Skipped: true}, nil
	}

	slog.Info("drain started", "items", len(snapshot))

	// Apply outside the owner so enqueues are not blocked on the store.
	results := make(map[string]error, len(snapshot))
	for _, it := range snapshot {
		if ctx.Err() != nil {
			break
		}
		results[it.ID] = apply(ctx, it)
	}

	report := DrainReport{Attempted: len(results)}
	var perr error
	err = q.call(context.WithoutCancel(ctx), func(st *state) {
		st.draining = false
		kept := make([]Item, 0, len(st.items))
		for _, it := range st.items {
			applyErr, attempted := results[it.ID]
			switch {
			case !attempted:
				kept = append(kept, it)
			case applyErr == nil:
				report.Applied++
			default:
				it.RetryCount++
				it.LastError = applyErr.Error()
				if it.Exhausted() {
					report.Dropped = append(report.Dropped, Failure{Item: it, Err: applyErr})
					continue
				}
				report.Retried++
				kept = append(kept, it)
			}
		}
		st.items = kept
		report.Remaining = len(kept)
		report.Settled = true
		perr = q.persist(context.WithoutCancel(ctx), st.items)
	})
	if err != nil {
		return report, fmt.Errorf("drain: %w", err)
	}

	for _, f := range report.Dropped {
		slog.Error("queued mutation dropped after max retries",
			"item_id", f.Item.ID,
			"type", f.Item.Type,
			"collection", f.Item.Collection,
			"document_id", f.Item.DocumentID,
			"retries", f.Item.RetryCount,
			"error", f.Err,
		)
	}
	slog.Info("drain finished",
		"attempted", report.Attempted,
		"applied", report.Applied,
		"retried", report.Retried,
		"dropped", len(report.Dropped),
		"remaining", report.Remaining,
	)

	if perr != nil {
		return report, fmt.Errorf("drain: %w", perr)
	}
	return report, nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liveledger/internal/match"
	"github.com/roach88/liveledger/internal/testutil"
)

var epoch = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func openTestQueue(t *testing.T, kv Storage, opts ...Option) *Queue {
	t.Helper()
	opts = append([]Option{
		WithClock(testutil.NewSteppingClock(epoch, time.Second)),
		WithIDGenerator(match.NewFixedGenerator("q")),
	}, opts...)
	q, err := Open(context.Background(), kv, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func eventMutation(id string) Mutation {
	return Mutation{
		Kind:       KindCreate,
		Collection: CollectionEvents,
		DocumentID: id,
		Data:       json.RawMessage(`{"id":"` + id + `"}`),
	}
}

func TestEnqueue_PersistsWholeQueue(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryKV()
	q := openTestQueue(t, kv)

	first, err := q.Enqueue(ctx, eventMutation("e-1"))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, eventMutation("e-2"))
	require.NoError(t, err)

	assert.Equal(t, "q-1", first.ID)
	assert.Equal(t, epoch, first.Timestamp)
	assert.Equal(t, DefaultMaxRetries, first.MaxRetries)

	var persisted []Item
	require.NoError(t, json.Unmarshal([]byte(kv.Raw(StorageKey)), &persisted))
	require.Len(t, persisted, 2)
	assert.Equal(t, "e-1", persisted[0].DocumentID)
	assert.Equal(t, "e-2", persisted[1].DocumentID)
	assert.Equal(t, CollectionEvents, persisted[0].Collection)
}

func TestEnqueue_PersistedShape(t *testing.T) {
	kv := testutil.NewMemoryKV()
	q := openTestQueue(t, kv)

	_, err := q.Enqueue(context.Background(), eventMutation("e-1"))
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal([]byte(kv.Raw(StorageKey)), &raw))
	require.Len(t, raw, 1)
	for _, key := range []string{"id", "type", "collection", "documentId", "data", "timestamp", "retryCount", "maxRetries"} {
		assert.Contains(t, raw[0], key)
	}
	assert.Equal(t, "create", raw[0]["type"])
}

func TestEnqueue_NotQueuedWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryKV()
	q := openTestQueue(t, kv)

	kv.FailSaves(true)
	_, err := q.Enqueue(ctx, eventMutation("e-1"))
	require.ErrorIs(t, err, testutil.ErrSaveFailed)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOpen_RestoresPersistedItems(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryKV()

	q1, err := Open(ctx, kv)
	require.NoError(t, err)
	_, err = q1.Enqueue(ctx, eventMutation("e-1"))
	require.NoError(t, err)
	require.NoError(t, q1.Close())

	q2 := openTestQueue(t, kv)
	items, err := q2.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "e-1", items[0].DocumentID)
}

func TestOpen_RejectsCorruptBlob(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryKV()
	require.NoError(t, kv.Save(ctx, StorageKey, []byte("{not json")))

	_, err := Open(ctx, kv)
	assert.Error(t, err)
}

func TestDrain_FIFOAndRemovesApplied(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t, testutil.NewMemoryKV())
	for _, id := range []string{"e-1", "e-2", "e-3"} {
		_, err := q.Enqueue(ctx, eventMutation(id))
		require.NoError(t, err)
	}

	var order []string
	report, err := q.Drain(ctx, func(_ context.Context, it Item) error {
		order = append(order, it.DocumentID)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"e-1", "e-2", "e-3"}, order)
	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 3, report.Applied)
	assert.Equal(t, 0, report.Remaining)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDrain_RetriesThenDrops(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryKV()
	q := openTestQueue(t, kv)

	_, err := q.Enqueue(ctx, eventMutation("e-1"))
	require.NoError(t, err)

	boom := errors.New("remote unavailable")
	fail := func(context.Context, Item) error { return boom }

	for attempt := 1; attempt < DefaultMaxRetries; attempt++ {
		report, err := q.Drain(ctx, fail)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Retried, "attempt %d", attempt)
		assert.Empty(t, report.Dropped)

		items, err := q.Items(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, attempt, items[0].RetryCount)
		assert.Equal(t, "remote unavailable", items[0].LastError)
	}

	report, err := q.Drain(ctx, fail)
	require.NoError(t, err)
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, "e-1", report.Dropped[0].Item.DocumentID)
	assert.ErrorIs(t, report.Dropped[0].Err, boom)
	assert.Equal(t, 0, report.Remaining)
	assert.Equal(t, "[]", kv.Raw(StorageKey))
}

func TestDrain_FailureDoesNotBlockLaterItems(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t, testutil.NewMemoryKV())
	for _, id := range []string{"e-1", "e-2"} {
		_, err := q.Enqueue(ctx, eventMutation(id))
		require.NoError(t, err)
	}

	report, err := q.Drain(ctx, func(_ context.Context, it Item) error {
		if it.DocumentID == "e-1" {
			return errors.New("nope")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 1, report.Retried)

	items, err := q.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "e-1", items[0].DocumentID)
}

func TestDrain_ConcurrentCallIsSkipped(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t, testutil.NewMemoryKV())
	_, err := q.Enqueue(ctx, eventMutation("e-1"))
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := q.Drain(ctx, func(context.Context, Item) error {
			close(entered)
			<-release
			return nil
		})
		assert.NoError(t, err)
	}()

	<-entered
	draining, err := q.Draining(ctx)
	require.NoError(t, err)
	assert.True(t, draining)

	report, err := q.Drain(ctx, func(context.Context, Item) error {
		t.Error("second drain must not apply anything")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, report.Skipped)

	close(release)
	wg.Wait()
}

func TestDrain_EnqueueDuringDrainWaitsForNextPass(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t, testutil.NewMemoryKV())
	_, err := q.Enqueue(ctx, eventMutation("e-1"))
	require.NoError(t, err)

	var applied []string
	report, err := q.Drain(ctx, func(_ context.Context, it Item) error {
		applied = append(applied, it.DocumentID)
		if it.DocumentID == "e-1" {
			_, err := q.Enqueue(ctx, eventMutation("e-late"))
			require.NoError(t, err)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"e-1"}, applied)
	assert.Equal(t, 1, report.Remaining)

	items, err := q.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "e-late", items[0].DocumentID)
	assert.Equal(t, 0, items[0].RetryCount)
}

func TestDrain_CancelledContextLeavesRestUntouched(t *testing.T) {
	q := openTestQueue(t, testutil.NewMemoryKV())
	for _, id := range []string{"e-1", "e-2"} {
		_, err := q.Enqueue(context.Background(), eventMutation(id))
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	report, err := q.Drain(ctx, func(context.Context, Item) error {
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Remaining)

	draining, err := q.Draining(context.Background())
	require.NoError(t, err)
	assert.False(t, draining)
}

func TestWithMaxRetries(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t, testutil.NewMemoryKV(), WithMaxRetries(1))

	_, err := q.Enqueue(ctx, eventMutation("e-1"))
	require.NoError(t, err)

	report, err := q.Drain(ctx, func(context.Context, Item) error { return errors.New("x") })
	require.NoError(t, err)
	assert.Len(t, report.Dropped, 1)

	_, err = Open(ctx, testutil.NewMemoryKV(), WithMaxRetries(0))
	assert.Error(t, err)
}

func TestClosedQueue(t *testing.T) {
	q, err := Open(context.Background(), testutil.NewMemoryKV())
	require.NoError(t, err)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	_, err = q.Enqueue(context.Background(), eventMutation("e-1"))
	assert.ErrorIs(t, err, ErrClosed)
}
